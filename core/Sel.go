/* Sel.go: the System Event Log store and its storage-netfn commands
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

	"github.com/kraken-hpc/ipmiemu/lib/ipmi"
)

type selEntry struct {
	recordID uint16
	data     [16]byte
}

// sel is an ordered log of 16-byte event records.  Record ids are unique,
// nonzero, and stored little-endian in the first two record bytes.
type sel struct {
	entries       []*selEntry
	maxCount      int
	lastAddTime   uint32
	lastEraseTime uint32
	flags         uint8
	reservation   uint16
	nextEntry     uint16
	timeOffset    int64
}

// findEntry gets the index of a record id, or -1
func (s *sel) findEntry(recordID uint16) int {
	for i, e := range s.entries {
		if e.recordID == recordID {
			return i
		}
	}
	return -1
}

// EnableSEL resets the SEL to empty with a capacity and support flags.
// Only the delete, reserve, and alloc-info support bits are kept.
func (mc *MC) EnableSEL(maxEntries int, flags uint8) {
	mc.sel.entries = nil
	mc.sel.maxCount = maxEntries
	mc.sel.lastAddTime = 0
	mc.sel.lastEraseTime = 0
	mc.sel.flags = flags & ipmi.IPMISELSupportMask
	mc.sel.reservation = 0
	mc.sel.nextEntry = 1
}

// AddToSEL appends an event record.  event is the 13-byte record body; for
// record types below the OEM boundary the first four bytes are replaced with
// the SEL timestamp and only bytes 4-12 are kept.  Returns the new record id
// and a completion code.
func (mc *MC) AddToSEL(recordType uint8, event []byte) (uint16, uint8) {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return 0, ipmi.IPMICmpInvalidCmd
	}

	if len(mc.sel.entries) >= mc.sel.maxCount {
		mc.sel.flags |= ipmi.IPMISELOverflowFlag
		return 0, ipmi.IPMICmpOutOfSpace
	}

	// Record ids must be unique and nonzero; the log can wrap and hold
	// deleted holes, so probe from next_entry, bounded by the id space.
	id := mc.sel.nextEntry
	for tries := 0; id == 0 || mc.sel.findEntry(id) >= 0; id++ {
		tries++
		if tries > 0xffff {
			return 0, ipmi.IPMICmpOutOfSpace
		}
	}
	mc.sel.nextEntry = id + 1

	now := nowUnix()
	stamp := uint32(now + mc.sel.timeOffset)

	e := &selEntry{recordID: id}
	binary.LittleEndian.PutUint16(e.data[0:2], id)
	e.data[2] = recordType
	if recordType < ipmi.IPMIOEMRecordTypeBoundary {
		binary.LittleEndian.PutUint32(e.data[3:7], stamp)
		if len(event) > 4 {
			end := len(event)
			if end > 13 {
				end = 13
			}
			copy(e.data[7:], event[4:end])
		}
	} else {
		end := len(event)
		if end > 13 {
			end = 13
		}
		copy(e.data[3:], event[:end])
	}

	mc.sel.entries = append(mc.sel.entries, e)
	mc.sel.lastAddTime = stamp
	return id, 0
}

func (mc *MC) handleGetSELInfo(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	rdata := make([]byte, 15)
	rdata[1] = ipmi.IPMIVersion1_5
	binary.LittleEndian.PutUint16(rdata[2:4], uint16(len(mc.sel.entries)))
	binary.LittleEndian.PutUint16(rdata[4:6], uint16((mc.sel.maxCount-len(mc.sel.entries))*16))
	binary.LittleEndian.PutUint32(rdata[6:10], mc.sel.lastAddTime)
	binary.LittleEndian.PutUint32(rdata[10:14], mc.sel.lastEraseTime)
	rdata[14] = mc.sel.flags

	// Reading the info clears the overflow flag.
	mc.sel.flags &^= ipmi.IPMISELOverflowFlag

	return rdata
}

func (mc *MC) handleGetSELAllocationInfo(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if mc.sel.flags&ipmi.IPMISELSupportsAllocInfo == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	free := uint16((mc.sel.maxCount - len(mc.sel.entries)) * 16)
	rdata := make([]byte, 10)
	binary.LittleEndian.PutUint16(rdata[1:3], uint16(mc.sel.maxCount*16))
	binary.LittleEndian.PutUint16(rdata[3:5], 16)
	binary.LittleEndian.PutUint16(rdata[5:7], free)
	binary.LittleEndian.PutUint16(rdata[7:9], free)
	rdata[9] = 1
	return rdata
}

func (mc *MC) handleReserveSEL(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if mc.sel.flags&ipmi.IPMISELSupportsReserve == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	mc.sel.reservation++
	if mc.sel.reservation == 0 {
		mc.sel.reservation++
	}
	rdata := make([]byte, 3)
	binary.LittleEndian.PutUint16(rdata[1:3], mc.sel.reservation)
	return rdata
}

func (mc *MC) handleGetSELEntry(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 6 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	if mc.sel.flags&ipmi.IPMISELSupportsReserve != 0 {
		reservation := binary.LittleEndian.Uint16(msg.data[0:2])
		if reservation != 0 && reservation != mc.sel.reservation {
			return errRsp(ipmi.IPMICmpInvalidReservation)
		}
	}

	recordID := binary.LittleEndian.Uint16(msg.data[2:4])
	offset := int(msg.data[4])
	count := int(msg.data[5])

	if offset >= 16 {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}

	idx := -1
	if recordID == 0 {
		if len(mc.sel.entries) > 0 {
			idx = 0
		}
	} else if recordID == 0xffff {
		idx = len(mc.sel.entries) - 1
	} else {
		idx = mc.sel.findEntry(recordID)
	}
	if idx < 0 {
		return errRsp(ipmi.IPMICmpNotPresent)
	}
	entry := mc.sel.entries[idx]

	if offset+count > 16 {
		count = 16 - offset
	}

	rdata := make([]byte, 3+count)
	if idx+1 < len(mc.sel.entries) {
		binary.LittleEndian.PutUint16(rdata[1:3], mc.sel.entries[idx+1].recordID)
	} else {
		rdata[1] = 0xff
		rdata[2] = 0xff
	}
	copy(rdata[3:], entry.data[offset:offset+count])
	return rdata
}

func (mc *MC) handleAddSELEntry(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 16 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	var id uint16
	var cc uint8
	if msg.data[2] < ipmi.IPMIOEMRecordTypeBoundary {
		id, cc = mc.AddToSEL(msg.data[2], msg.data[6:])
	} else {
		id, cc = mc.AddToSEL(msg.data[2], msg.data[3:])
	}
	if cc != 0 {
		return errRsp(cc)
	}
	rdata := make([]byte, 3)
	binary.LittleEndian.PutUint16(rdata[1:3], id)
	return rdata
}

func (mc *MC) handleDeleteSELEntry(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if mc.sel.flags&ipmi.IPMISELSupportsDelete == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 4 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	if mc.sel.flags&ipmi.IPMISELSupportsReserve != 0 {
		reservation := binary.LittleEndian.Uint16(msg.data[0:2])
		if reservation != 0 && reservation != mc.sel.reservation {
			return errRsp(ipmi.IPMICmpInvalidReservation)
		}
	}

	recordID := binary.LittleEndian.Uint16(msg.data[2:4])

	idx := -1
	if recordID == 0 {
		if len(mc.sel.entries) > 0 {
			idx = 0
		}
	} else if recordID == 0xffff {
		idx = len(mc.sel.entries) - 1
	} else {
		idx = mc.sel.findEntry(recordID)
	}
	if idx < 0 {
		return errRsp(ipmi.IPMICmpNotPresent)
	}

	deleted := mc.sel.entries[idx].recordID
	mc.sel.entries = append(mc.sel.entries[:idx], mc.sel.entries[idx+1:]...)

	rdata := make([]byte, 3)
	binary.LittleEndian.PutUint16(rdata[1:3], deleted)
	return rdata
}

func (mc *MC) handleClearSEL(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 6 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	if mc.sel.flags&ipmi.IPMISELSupportsReserve != 0 {
		reservation := binary.LittleEndian.Uint16(msg.data[0:2])
		if reservation != 0 && reservation != mc.sel.reservation {
			return errRsp(ipmi.IPMICmpInvalidReservation)
		}
	}

	if msg.data[2] != 'C' || msg.data[3] != 'L' || msg.data[4] != 'R' {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}

	op := msg.data[5]
	if op != 0 && op != 0xaa {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}

	if op == 0 {
		mc.sel.entries = nil
	}
	mc.sel.lastEraseTime = uint32(nowUnix() + mc.sel.timeOffset)

	// erasure completes immediately
	return []byte{0, 1}
}

func (mc *MC) handleGetSELTime(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	rdata := make([]byte, 5)
	binary.LittleEndian.PutUint32(rdata[1:5], uint32(nowUnix()+mc.sel.timeOffset))
	return rdata
}

func (mc *MC) handleSetSELTime(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSELDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 4 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	mc.sel.timeOffset = int64(binary.LittleEndian.Uint32(msg.data[0:4])) - nowUnix()
	return []byte{0}
}
