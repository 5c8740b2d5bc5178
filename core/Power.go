/* Power.go: OEM0 power control commands and the power-change control event
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package core

import (
	"github.com/kraken-hpc/ipmiemu/lib/ipmi"
)

// SetPower updates the stored power value; on change, if genEvent is set and
// an event receiver is configured, an OEM control event (record type 0xc0) is
// delivered to that receiver.
func (mc *MC) SetPower(power uint8, genEvent bool) {
	if mc.powerValue == power {
		return
	}
	mc.powerValue = power

	if mc.eventReceiver == 0 || !genEvent {
		return
	}
	dest, err := mc.emu.MCByAddr(mc.eventReceiver)
	if err != nil {
		return
	}

	var data [13]uint8
	// timestamp bytes are rewritten by the receiving SEL
	data[4] = 0x20 // control events come from the BMC address
	data[6] = 0x01 // control message version 1
	data[8] = 0    // control number 0
	data[10] = power

	dest.AddToSEL(0xc0, data[:])
}

// Power gets the current power value
func (mc *MC) Power() uint8 { return mc.powerValue }

func (mc *MC) handleSetPower(msg *ipmiMsg) []byte {
	if len(msg.data) < 1 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	mc.SetPower(msg.data[0], true)
	return []byte{0}
}

func (mc *MC) handleGetPower(msg *ipmiMsg) []byte {
	return []byte{0, mc.powerValue}
}
