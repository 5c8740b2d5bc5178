/* Dispatcher.go: top-level IPMI request routing, including SEND_MSG bridging
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

// ipmiMsg is a decoded request: the payload behind the netfn/cmd address
type ipmiMsg struct {
	netfn uint8
	cmd   uint8
	data  []byte
}

func errRsp(cc uint8) []byte { return []byte{cc} }

// HandleMsg is the single entry point of the engine.  req is the raw IPMI
// payload [netfn<<2|lun, cmd, data...]; the returned response starts with the
// completion code.  Runs synchronously to completion; all side effects,
// including cross-MC event delivery, are visible on return.
func (e *Emulator) HandleMsg(lun uint8, req []byte) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(req) < 2 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	msg := &ipmiMsg{
		netfn: req[0] >> 2,
		cmd:   req[1],
		data:  req[2:],
	}

	var mc *MC
	encap := false
	var hdr []byte
	if msg.netfn == ipmi.IPMIFnAppReq && msg.cmd == ipmi.IPMICmdSendMessage {
		// Encapsulated IPMB, do special handling.
		if len(msg.data) < 8 {
			return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
		}
		if msg.data[0]&0x3f != 0 {
			return errRsp(ipmi.IPMICmpInvalidDataField)
		}
		data := msg.data[1:]
		if data[0] == 0 {
			// Broadcast, just skip the first byte, but check len.
			data = data[1:]
			if len(data) < 7 {
				return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
			}
		}
		slave := data[0]
		mc = e.ipmb[slave>>1]
		if mc == nil {
			return errRsp(ipmi.IPMICmpNAKOnWrite)
		}
		hdr = data
		encap = true
		lun = data[1] & 0x3
		msg = &ipmiMsg{
			netfn: data[1] >> 2,
			cmd:   data[5],
			// trailing byte is the IPMB checksum
			data: data[6 : len(data)-1],
		}
	} else {
		mc = e.ipmb[e.bmcMC>>1]
		if mc == nil {
			return errRsp(ipmi.IPMICmpUnknownErr)
		}
	}

	var rdata []byte
	switch msg.netfn {
	case ipmi.IPMIFnAppReq:
		rdata = mc.handleAppNetfn(lun, msg)
	case ipmi.IPMIFnSensorEventReq:
		rdata = mc.handleSensorEventNetfn(lun, msg)
	case ipmi.IPMIFnStorageReq:
		rdata = mc.handleStorageNetfn(lun, msg)
	case ipmi.IPMIFnCtrlOEMReq:
		rdata = mc.handleOEM0Netfn(lun, msg)
	default:
		rdata = errRsp(ipmi.IPMICmpInvalidCmd)
	}

	e.log.Logf(DDEBUG, "handled netfn %#02x cmd %#02x for MC %#02x: cc %#02x",
		msg.netfn, msg.cmd, mc.ipmb, rdata[0])

	if encap {
		// Wrap the inner response in an IPMB reply frame; the inner
		// completion code stays inside the wrapped payload.
		wrapped := make([]byte, 7, len(rdata)+8)
		wrapped[0] = 0
		wrapped[1] = e.bmcMC
		wrapped[2] = ((msg.netfn | 1) << 2) | (hdr[4] & 0x3)
		wrapped[3] = ipmi.Cksum(wrapped[1:3], 0)
		wrapped[4] = hdr[0]
		wrapped[5] = (hdr[4] & 0xfc) | (hdr[1] & 0x03)
		wrapped[6] = hdr[5]
		wrapped = append(wrapped, rdata...)
		wrapped = append(wrapped, ipmi.Cksum(wrapped, 0))
		return wrapped
	}
	return rdata
}

func (mc *MC) handleAppNetfn(lun uint8, msg *ipmiMsg) []byte {
	switch msg.cmd {
	case ipmi.IPMICmdGetDeviceID:
		return mc.handleGetDeviceID(msg)
	default:
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
}

func (mc *MC) handleSensorEventNetfn(lun uint8, msg *ipmiMsg) []byte {
	switch msg.cmd {
	case ipmi.IPMICmdGetEventReceiver:
		return mc.handleGetEventReceiver(msg)
	case ipmi.IPMICmdSetEventReceiver:
		return mc.handleSetEventReceiver(msg)
	case ipmi.IPMICmdGetDeviceSDRInfo:
		return mc.handleGetDeviceSDRInfo(lun, msg)
	case ipmi.IPMICmdReserveDeviceSDRRepo:
		return mc.handleReserveDeviceSDRRepository(lun, msg)
	case ipmi.IPMICmdGetDeviceSDR:
		return mc.handleGetDeviceSDR(lun, msg)
	case ipmi.IPMICmdSetSensorHysteresis:
		return mc.handleSetSensorHysteresis(lun, msg)
	case ipmi.IPMICmdGetSensorHysteresis:
		return mc.handleGetSensorHysteresis(lun, msg)
	case ipmi.IPMICmdSetSensorThreshold:
		return mc.handleSetSensorThresholds(lun, msg)
	case ipmi.IPMICmdGetSensorThreshold:
		return mc.handleGetSensorThresholds(lun, msg)
	case ipmi.IPMICmdSetSensorEventEnable:
		return mc.handleSetSensorEventEnable(lun, msg)
	case ipmi.IPMICmdGetSensorEventEnable:
		return mc.handleGetSensorEventEnable(lun, msg)
	case ipmi.IPMICmdGetSensorReading:
		return mc.handleGetSensorReading(lun, msg)
	case ipmi.IPMICmdGetSensorType:
		return mc.handleGetSensorType(lun, msg)
	default:
		// includes set sensor type, rearm, event status and reading
		// factors, which this controller does not implement
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
}

func (mc *MC) handleStorageNetfn(lun uint8, msg *ipmiMsg) []byte {
	switch msg.cmd {
	case ipmi.IPMICmdGetFRUInventoryAreaInfo:
		return mc.handleGetFRUInventoryAreaInfo(msg)
	case ipmi.IPMICmdReadFRUData:
		return mc.handleReadFRUData(msg)
	case ipmi.IPMICmdWriteFRUData:
		return mc.handleWriteFRUData(msg)

	case ipmi.IPMICmdGetSDRRepositoryInfo:
		return mc.handleGetSDRRepositoryInfo(msg)
	case ipmi.IPMICmdGetSDRRepositoryAllocInfo:
		return mc.handleGetSDRRepositoryAllocInfo(msg)
	case ipmi.IPMICmdReserveSDRRepository:
		return mc.handleReserveSDRRepository(msg)
	case ipmi.IPMICmdGetSDR:
		return mc.handleGetSDR(msg)
	case ipmi.IPMICmdAddSDR:
		return mc.handleAddSDR(msg)
	case ipmi.IPMICmdPartialAddSDR:
		return mc.handlePartialAddSDR(msg)
	case ipmi.IPMICmdDeleteSDR:
		return mc.handleDeleteSDR(msg)
	case ipmi.IPMICmdClearSDRRepository:
		return mc.handleClearSDRRepository(msg)
	case ipmi.IPMICmdGetSDRRepositoryTime:
		return mc.handleGetSDRRepositoryTime(msg)
	case ipmi.IPMICmdSetSDRRepositoryTime:
		return mc.handleSetSDRRepositoryTime(msg)
	case ipmi.IPMICmdEnterSDRRepositoryUpdate:
		return mc.handleEnterSDRRepositoryUpdate(msg)
	case ipmi.IPMICmdExitSDRRepositoryUpdate:
		return mc.handleExitSDRRepositoryUpdate(msg)

	case ipmi.IPMICmdGetSELInfo:
		return mc.handleGetSELInfo(msg)
	case ipmi.IPMICmdGetSELAllocInfo:
		return mc.handleGetSELAllocationInfo(msg)
	case ipmi.IPMICmdReserveSEL:
		return mc.handleReserveSEL(msg)
	case ipmi.IPMICmdGetSELEntry:
		return mc.handleGetSELEntry(msg)
	case ipmi.IPMICmdAddSELEntry:
		return mc.handleAddSELEntry(msg)
	case ipmi.IPMICmdDeleteSELEntry:
		return mc.handleDeleteSELEntry(msg)
	case ipmi.IPMICmdClearSEL:
		return mc.handleClearSEL(msg)
	case ipmi.IPMICmdGetSELTime:
		return mc.handleGetSELTime(msg)
	case ipmi.IPMICmdSetSELTime:
		return mc.handleSetSELTime(msg)

	default:
		// partial SEL adds, the initialization agent and auxiliary
		// logs are not implemented
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
}

func (mc *MC) handleOEM0Netfn(lun uint8, msg *ipmiMsg) []byte {
	switch msg.cmd {
	case ipmi.IPMICmdSetPower:
		return mc.handleSetPower(msg)
	case ipmi.IPMICmdGetPower:
		return mc.handleGetPower(msg)
	default:
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
}
