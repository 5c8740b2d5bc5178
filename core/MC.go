/* MC.go: management controller model and device identity
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package core

import (
	"time"

	"github.com/kraken-hpc/ipmiemu/lib/ipmi"
)

func nowUnix() int64 { return time.Now().Unix() }

// An MC models one management controller: device identity plus the SEL, SDR,
// FRU and sensor repositories it owns.  Replacing the MC at an IPMB address
// releases the old MC and everything it owns.
type MC struct {
	emu *Emulator

	ipmb uint8

	// Get Device Id contents
	deviceID       uint8 // byte 2
	hasDeviceSDRs  bool  // byte 3, bit 7
	deviceRevision uint8 // byte 3, bits 0-3
	majorFwRev     uint8 // byte 4, bits 0-6
	minorFwRev     uint8 // byte 5
	deviceSupport  uint8 // byte 7
	mfgID          [3]uint8
	productID      [2]uint8

	sel sel

	mainSDRs   sdrRepo
	deviceSDRs [4]sdrRepo

	partAddSDR   *sdr
	partAddNext  int
	inUpdateMode bool

	eventReceiver    uint8
	eventReceiverLUN uint8

	dynamicSensorPopulation    bool
	lunHasSensors              [4]bool
	numSensorsPerLUN           [4]uint8
	sensorPopulationChangeTime uint32
	sensors                    [4][255]*sensor

	frus [255]fruData

	powerValue uint8

	// OemHandleRsp lets OEM transport code inspect a response before it is
	// returned; returning true consumes the response.
	OemHandleRsp func(netfn, cmd uint8, rsp []byte) bool
}

// IPMB gets the MC's slave address
func (mc *MC) IPMB() uint8 { return mc.ipmb }

// SetDeviceID sets the device id reported by Get Device ID
func (mc *MC) SetDeviceID(id uint8) { mc.deviceID = id }

// DeviceID gets the device id
func (mc *MC) DeviceID() uint8 { return mc.deviceID }

// SetHasDeviceSDRs sets whether the MC provides device SDRs
func (mc *MC) SetHasDeviceSDRs(has bool) { mc.hasDeviceSDRs = has }

// HasDeviceSDRs gets whether the MC provides device SDRs
func (mc *MC) HasDeviceSDRs() bool { return mc.hasDeviceSDRs }

// SetDeviceRevision sets the 4-bit device revision
func (mc *MC) SetDeviceRevision(rev uint8) { mc.deviceRevision = rev }

// DeviceRevision gets the device revision
func (mc *MC) DeviceRevision() uint8 { return mc.deviceRevision }

// SetFwRev sets the major (7-bit) and minor firmware revisions
func (mc *MC) SetFwRev(major, minor uint8) {
	mc.majorFwRev = major
	mc.minorFwRev = minor
}

// FwRev gets the major and minor firmware revisions
func (mc *MC) FwRev() (major, minor uint8) { return mc.majorFwRev, mc.minorFwRev }

// SetDeviceSupport sets the device support bitfield
func (mc *MC) SetDeviceSupport(s uint8) { mc.deviceSupport = s }

// DeviceSupport gets the device support bitfield
func (mc *MC) DeviceSupport() uint8 { return mc.deviceSupport }

// SetMfgID sets the 3-byte manufacturer id
func (mc *MC) SetMfgID(id [3]uint8) { mc.mfgID = id }

// MfgID gets the manufacturer id
func (mc *MC) MfgID() [3]uint8 { return mc.mfgID }

// SetProductID sets the 2-byte product id
func (mc *MC) SetProductID(id [2]uint8) { mc.productID = id }

// ProductID gets the product id
func (mc *MC) ProductID() [2]uint8 { return mc.productID }

// EventReceiver gets the IPMB slave address events are delivered to (0 = disabled)
func (mc *MC) EventReceiver() uint8 { return mc.eventReceiver }

// handleGetDeviceID services Get Device ID; it is valid regardless of
// device_support.
func (mc *MC) handleGetDeviceID(msg *ipmiMsg) []byte {
	rdata := make([]byte, 12)
	rdata[1] = mc.deviceID
	rdata[2] = boolBit(mc.hasDeviceSDRs)<<7 | (mc.deviceRevision & 0xf)
	rdata[3] = mc.majorFwRev & 0x7f
	rdata[4] = mc.minorFwRev
	rdata[5] = ipmi.IPMIVersion1_5
	rdata[6] = mc.deviceSupport
	copy(rdata[7:10], mc.mfgID[:])
	copy(rdata[10:12], mc.productID[:])
	return rdata
}

func (mc *MC) handleGetEventReceiver(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDIPMBEventGen == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	return []byte{0, mc.eventReceiver, mc.eventReceiverLUN & 0x3}
}

func (mc *MC) handleSetEventReceiver(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDIPMBEventGen == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 2 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	mc.eventReceiver = msg.data[0] & ipmi.IPMISlaveMask
	mc.eventReceiverLUN = msg.data[1] & 0x3
	return []byte{0}
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
