/* Fru.go: FRU inventory areas and their storage-netfn commands
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package core

import (
	"encoding/binary"
	"fmt"

	"github.com/kraken-hpc/ipmiemu/lib/ipmi"
)

// fruData is one byte-addressable inventory area; a nil data slice means the
// device id is not populated.
type fruData struct {
	data []byte
}

// AddFRUData creates (or replaces) the inventory area for a device id.  The
// area is length bytes, zero filled past the initial data.
func (mc *MC) AddFRUData(deviceID uint8, length int, data []byte) error {
	if mc.deviceSupport&ipmi.IPMIDevIDFRUInventory == 0 {
		return fmt.Errorf("MC %#02x is not a FRU inventory device", mc.ipmb)
	}
	if deviceID >= 255 {
		return fmt.Errorf("FRU device id out of range: %d", deviceID)
	}
	if len(data) > length {
		return fmt.Errorf("FRU data larger than area: %d > %d", len(data), length)
	}
	area := make([]byte, length)
	copy(area, data)
	mc.frus[deviceID].data = area
	return nil
}

func (mc *MC) handleGetFRUInventoryAreaInfo(msg *ipmiMsg) []byte {
	if len(msg.data) < 1 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	devid := msg.data[0]
	if devid >= 255 || mc.frus[devid].data == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}

	rdata := make([]byte, 4)
	binary.LittleEndian.PutUint16(rdata[1:3], uint16(len(mc.frus[devid].data)))
	rdata[3] = 0 // byte access only
	return rdata
}

func (mc *MC) handleReadFRUData(msg *ipmiMsg) []byte {
	if len(msg.data) < 4 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	devid := msg.data[0]
	if devid >= 255 || mc.frus[devid].data == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	fru := mc.frus[devid].data

	offset := int(binary.LittleEndian.Uint16(msg.data[1:3]))
	count := int(msg.data[3])

	if offset >= len(fru) {
		return errRsp(ipmi.IPMICmpParameterOutOfRange)
	}
	if offset+count > len(fru) {
		count = len(fru) - offset
	}
	if count+2 > ipmi.MaxMsgReturnData {
		return errRsp(ipmi.IPMICmpReqDataLengthExceeded)
	}

	rdata := make([]byte, 2+count)
	rdata[1] = uint8(count)
	copy(rdata[2:], fru[offset:offset+count])
	return rdata
}

func (mc *MC) handleWriteFRUData(msg *ipmiMsg) []byte {
	if len(msg.data) < 3 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	devid := msg.data[0]
	if devid >= 255 || mc.frus[devid].data == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	fru := mc.frus[devid].data

	offset := int(binary.LittleEndian.Uint16(msg.data[1:3]))
	count := len(msg.data) - 3

	if offset >= len(fru) {
		return errRsp(ipmi.IPMICmpParameterOutOfRange)
	}
	if offset+count > len(fru) {
		// no truncated writes
		return errRsp(ipmi.IPMICmpReqDataLengthExceeded)
	}

	copy(fru[offset:], msg.data[3:])
	return []byte{0, uint8(count)}
}
