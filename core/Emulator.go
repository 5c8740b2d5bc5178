/* Emulator.go: the emulator domain; holds the IPMB-addressed MC table
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package core

import (
	"fmt"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/kraken-hpc/ipmiemu/lib/types"
)

// An Emulator owns one IPMB address space of management controllers and the
// BMC slave address requests are delivered to by default.  The engine itself
// is single-threaded cooperative; HandleMsg serializes on the domain lock,
// and any other goroutine touching MC state must hold it via Lock/Unlock.
type Emulator struct {
	mu    sync.Mutex
	id    uuid.UUID
	bmcMC uint8
	// IPMB slave addresses are even, so we key on slave >> 1
	ipmb [128]*MC
	log  types.Logger
}

// Lock takes the domain lock for out-of-band readers like the inspection API
func (e *Emulator) Lock() { e.mu.Lock() }

// Unlock releases the domain lock
func (e *Emulator) Unlock() { e.mu.Unlock() }

// NewEmulator creates an empty emulator domain
func NewEmulator(log types.Logger) *Emulator {
	e := &Emulator{
		id:  uuid.NewV4(),
		log: log,
	}
	e.log.Logf(INFO, "created emulator domain %s", e.id.String())
	return e
}

// ID gets the unique id of this emulator domain
func (e *Emulator) ID() uuid.UUID { return e.id }

// BMCAddr gets the IPMB slave address of the BMC itself
func (e *Emulator) BMCAddr() uint8 { return e.bmcMC }

// SetBMCAddr sets the IPMB slave address of the BMC itself
func (e *Emulator) SetBMCAddr(ipmb uint8) error {
	if ipmb&1 != 0 {
		return fmt.Errorf("IPMB slave address must be even: %#02x", ipmb)
	}
	e.bmcMC = ipmb
	return nil
}

// AddMC creates a management controller at an IPMB slave address.  An MC
// already present at the address is destroyed together with everything it
// owns.
func (e *Emulator) AddMC(ipmb, deviceID uint8, hasDeviceSDRs bool, deviceRevision, majorFwRev, minorFwRev, deviceSupport uint8, mfgID [3]uint8, productID [2]uint8, dynamicSensorPopulation bool) (*MC, error) {
	if ipmb&1 != 0 {
		return nil, fmt.Errorf("IPMB slave address must be even: %#02x", ipmb)
	}
	mc := &MC{
		emu:                     e,
		ipmb:                    ipmb,
		deviceID:                deviceID,
		hasDeviceSDRs:           hasDeviceSDRs,
		deviceRevision:          deviceRevision,
		majorFwRev:              majorFwRev,
		minorFwRev:              minorFwRev,
		deviceSupport:           deviceSupport,
		mfgID:                   mfgID,
		productID:               productID,
		dynamicSensorPopulation: dynamicSensorPopulation,
		eventReceiver:           0x20,
	}

	// Repository clocks start at zero, not at the wall clock.
	now := nowUnix()
	mc.sel.timeOffset = -now
	mc.mainSDRs.timeOffset = -now
	for i := range mc.deviceSDRs {
		mc.deviceSDRs[i].timeOffset = -now
	}

	e.ipmb[ipmb>>1] = mc
	e.log.Logf(INFO, "added MC %#02x (device_id %#02x)", ipmb, deviceID)
	return mc, nil
}

// MCByAddr resolves an MC by its IPMB slave address
func (e *Emulator) MCByAddr(ipmb uint8) (*MC, error) {
	if ipmb&1 != 0 {
		return nil, fmt.Errorf("IPMB slave address must be even: %#02x", ipmb)
	}
	mc := e.ipmb[ipmb>>1]
	if mc == nil {
		return nil, fmt.Errorf("no MC at IPMB address %#02x", ipmb)
	}
	return mc, nil
}

// MCs lists the populated MCs in IPMB address order
func (e *Emulator) MCs() []*MC {
	var r []*MC
	for _, mc := range e.ipmb {
		if mc != nil {
			r = append(r, mc)
		}
	}
	return r
}
