/* Sdr.go: main and device Sensor Data Record repositories
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

// sdr is one variable-length record; data holds the full record including the
// 6-byte header, and its first two bytes always equal recordID little-endian.
type sdr struct {
	recordID uint16
	data     []byte
}

type sdrRepo struct {
	reservation   uint16
	lastAddTime   uint32
	lastEraseTime uint32
	timeOffset    int64
	flags         uint8
	nextEntry     uint16
	sdrs          []*sdr
}

// findEntry gets the index of a record id, or -1
func (r *sdrRepo) findEntry(recordID uint16) int {
	for i, e := range r.sdrs {
		if e.recordID == recordID {
			return i
		}
	}
	return -1
}

// newEntry allocates a record with a fresh record id and a bodyLen+6 byte
// buffer.  Ids 0 ("first") and 0xffff ("last") are never allocated; returns
// nil when the id space is exhausted.
func (r *sdrRepo) newEntry(bodyLen uint8) *sdr {
	id := r.nextEntry
	for tries := 0; id == 0 || id == 0xffff || r.findEntry(id) >= 0; id++ {
		tries++
		if tries > 0xffff {
			return nil
		}
	}
	r.nextEntry = id + 1

	e := &sdr{
		recordID: id,
		data:     make([]byte, int(bodyLen)+6),
	}
	binary.LittleEndian.PutUint16(e.data[0:2], id)
	return e
}

// addEntry appends a record at the tail and stamps the add time
func (r *sdrRepo) addEntry(e *sdr) {
	r.sdrs = append(r.sdrs, e)
	r.lastAddTime = uint32(nowUnix() + r.timeOffset)
}

// SetSDRFlags sets the main repository support/modal flags
func (mc *MC) SetSDRFlags(flags uint8) { mc.mainSDRs.flags = flags }

// AddMainSDR adds a full record (6-byte header plus body) to the main
// repository, rewriting its record-id bytes.
func (mc *MC) AddMainSDR(data []byte) error {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return fmt.Errorf("MC %#02x is not an SDR repository device", mc.ipmb)
	}
	if len(data) < 6 || len(data) > ipmi.MaxSDRLength {
		return fmt.Errorf("invalid SDR length: %d", len(data))
	}
	entry := mc.mainSDRs.newEntry(uint8(len(data) - 6))
	if entry == nil {
		return fmt.Errorf("SDR repository record ids exhausted")
	}
	copy(entry.data[2:], data[2:])
	mc.mainSDRs.addEntry(entry)
	return nil
}

// AddDeviceSDR adds a full record to the per-LUN device repository and
// updates the sensor-population bookkeeping.
func (mc *MC) AddDeviceSDR(lun uint8, data []byte) error {
	if lun >= 4 {
		return fmt.Errorf("LUN out of range: %d", lun)
	}
	if !mc.hasDeviceSDRs {
		return fmt.Errorf("MC %#02x has no device SDRs", mc.ipmb)
	}
	if len(data) < 6 || len(data) > ipmi.MaxSDRLength {
		return fmt.Errorf("invalid SDR length: %d", len(data))
	}
	entry := mc.deviceSDRs[lun].newEntry(uint8(len(data) - 6))
	if entry == nil {
		return fmt.Errorf("device SDR record ids exhausted")
	}
	copy(entry.data[2:], data[2:])
	mc.deviceSDRs[lun].addEntry(entry)

	mc.sensorPopulationChangeTime = uint32(nowUnix() + mc.mainSDRs.timeOffset)
	mc.lunHasSensors[lun] = true
	mc.numSensorsPerLUN[lun]++
	return nil
}

// dropPartAdd discards any in-progress partial add
func (mc *MC) dropPartAdd() {
	mc.partAddSDR = nil
	mc.partAddNext = 0
}

func (mc *MC) handleGetSDRRepositoryInfo(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	space := ipmi.MaxSDRLength * (ipmi.MaxNumSDRs - len(mc.mainSDRs.sdrs))
	if space > 0xfffe {
		space = 0xfffe
	}
	rdata := make([]byte, 15)
	rdata[1] = ipmi.IPMIVersion1_5
	binary.LittleEndian.PutUint16(rdata[2:4], uint16(len(mc.mainSDRs.sdrs)))
	binary.LittleEndian.PutUint16(rdata[4:6], uint16(space))
	binary.LittleEndian.PutUint32(rdata[6:10], mc.mainSDRs.lastAddTime)
	binary.LittleEndian.PutUint32(rdata[10:14], mc.mainSDRs.lastEraseTime)
	rdata[14] = mc.mainSDRs.flags
	return rdata
}

func (mc *MC) handleGetSDRRepositoryAllocInfo(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if mc.mainSDRs.flags&ipmi.IPMISDRSupportsGetAllocInfo == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	free := uint16(ipmi.MaxNumSDRs - len(mc.mainSDRs.sdrs))
	rdata := make([]byte, 10)
	binary.LittleEndian.PutUint16(rdata[1:3], uint16(ipmi.MaxNumSDRs))
	binary.LittleEndian.PutUint16(rdata[3:5], uint16(ipmi.MaxSDRLength))
	binary.LittleEndian.PutUint16(rdata[5:7], free)
	binary.LittleEndian.PutUint16(rdata[7:9], free)
	rdata[9] = 1
	return rdata
}

func (mc *MC) handleReserveSDRRepository(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if mc.mainSDRs.flags&ipmi.IPMISDRSupportsReserve == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	mc.mainSDRs.reservation++
	if mc.mainSDRs.reservation == 0 {
		mc.mainSDRs.reservation++
	}

	// A reservation change invalidates any working partial add.
	mc.dropPartAdd()

	rdata := make([]byte, 3)
	binary.LittleEndian.PutUint16(rdata[1:3], mc.mainSDRs.reservation)
	return rdata
}

// getFromRepo services a Get SDR / Get Device SDR against one repository
func getFromRepo(r *sdrRepo, msg *ipmiMsg, checkReservation bool) []byte {
	if len(msg.data) < 6 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	if checkReservation {
		reservation := binary.LittleEndian.Uint16(msg.data[0:2])
		if reservation != 0 && reservation != r.reservation {
			return errRsp(ipmi.IPMICmpInvalidReservation)
		}
	}

	recordID := binary.LittleEndian.Uint16(msg.data[2:4])
	offset := int(msg.data[4])
	count := int(msg.data[5])

	idx := -1
	if recordID == 0 {
		if len(r.sdrs) > 0 {
			idx = 0
		}
	} else if recordID == 0xffff {
		idx = len(r.sdrs) - 1
	} else {
		idx = r.findEntry(recordID)
	}
	if idx < 0 {
		return errRsp(ipmi.IPMICmpNotPresent)
	}
	entry := r.sdrs[idx]

	if offset >= len(entry.data) {
		return errRsp(ipmi.IPMICmpParameterOutOfRange)
	}
	if offset+count > len(entry.data) {
		count = len(entry.data) - offset
	}
	if count+3 > ipmi.MaxMsgReturnData {
		return errRsp(ipmi.IPMICmpReqDataLengthExceeded)
	}

	rdata := make([]byte, 3+count)
	if idx+1 < len(r.sdrs) {
		binary.LittleEndian.PutUint16(rdata[1:3], r.sdrs[idx+1].recordID)
	} else {
		rdata[1] = 0xff
		rdata[2] = 0xff
	}
	copy(rdata[3:], entry.data[offset:offset+count])
	return rdata
}

func (mc *MC) handleGetSDR(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	return getFromRepo(&mc.mainSDRs, msg, mc.mainSDRs.flags&ipmi.IPMISDRSupportsReserve != 0)
}

func (mc *MC) handleAddSDR(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	if ipmi.SDRModal(mc.mainSDRs.flags) == ipmi.IPMISDRNonModalOnly && !mc.inUpdateMode {
		return errRsp(ipmi.IPMICmpNotSupportedInState)
	}

	if len(msg.data) < 6 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	if len(msg.data) != int(msg.data[5])+6 {
		return errRsp(ipmi.IPMICmpSDRLengthInvalid)
	}

	entry := mc.mainSDRs.newEntry(msg.data[5])
	if entry == nil {
		return errRsp(ipmi.IPMICmpOutOfSpace)
	}
	copy(entry.data[2:], msg.data[2:])
	mc.mainSDRs.addEntry(entry)

	rdata := make([]byte, 3)
	binary.LittleEndian.PutUint16(rdata[1:3], entry.recordID)
	return rdata
}

func (mc *MC) handlePartialAddSDR(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if mc.mainSDRs.flags&ipmi.IPMISDRSupportsPartialAdd == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 6 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	if mc.mainSDRs.flags&ipmi.IPMISDRSupportsReserve != 0 {
		reservation := binary.LittleEndian.Uint16(msg.data[0:2])
		if reservation != 0 && reservation != mc.mainSDRs.reservation {
			return errRsp(ipmi.IPMICmpInvalidReservation)
		}
	}

	if ipmi.SDRModal(mc.mainSDRs.flags) == ipmi.IPMISDRNonModalOnly && !mc.inUpdateMode {
		return errRsp(ipmi.IPMICmpNotSupportedInState)
	}

	recordID := binary.LittleEndian.Uint16(msg.data[2:4])
	offset := int(msg.data[4])

	if recordID == 0 {
		// Beginning a new record.
		if len(msg.data) < 12 {
			return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
		}
		if offset != 0 {
			return errRsp(ipmi.IPMICmpInvalidDataField)
		}
		if len(msg.data) > int(msg.data[11])+12 {
			return errRsp(ipmi.IPMICmpSDRLengthInvalid)
		}
		if mc.partAddSDR != nil {
			// Still working on a previous one; abort it.
			mc.dropPartAdd()
			return errRsp(ipmi.IPMICmpUnknownErr)
		}
		entry := mc.mainSDRs.newEntry(msg.data[11])
		if entry == nil {
			return errRsp(ipmi.IPMICmpOutOfSpace)
		}
		copy(entry.data[2:], msg.data[8:])
		mc.partAddSDR = entry
		mc.partAddNext = len(msg.data) - 6
	} else {
		if mc.partAddSDR == nil {
			return errRsp(ipmi.IPMICmpUnknownErr)
		}
		if offset != mc.partAddNext {
			mc.dropPartAdd()
			return errRsp(ipmi.IPMICmpInvalidDataField)
		}
		if offset+len(msg.data)-6 > len(mc.partAddSDR.data) {
			mc.dropPartAdd()
			return errRsp(ipmi.IPMICmpSDRLengthInvalid)
		}
		copy(mc.partAddSDR.data[offset:], msg.data[6:])
		mc.partAddNext += len(msg.data) - 6
	}

	id := mc.partAddSDR.recordID

	if msg.data[5]&0xf == 1 {
		// End of the operation.
		if mc.partAddNext != len(mc.partAddSDR.data) {
			mc.dropPartAdd()
			return errRsp(ipmi.IPMICmpSDRLengthInvalid)
		}
		mc.mainSDRs.addEntry(mc.partAddSDR)
		mc.dropPartAdd()
	}

	rdata := make([]byte, 3)
	binary.LittleEndian.PutUint16(rdata[1:3], id)
	return rdata
}

func (mc *MC) handleDeleteSDR(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 4 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	if mc.mainSDRs.flags&ipmi.IPMISDRSupportsReserve != 0 {
		reservation := binary.LittleEndian.Uint16(msg.data[0:2])
		if reservation != 0 && reservation != mc.mainSDRs.reservation {
			return errRsp(ipmi.IPMICmpInvalidReservation)
		}
	}

	recordID := binary.LittleEndian.Uint16(msg.data[2:4])

	idx := -1
	if recordID == 0 {
		if len(mc.mainSDRs.sdrs) > 0 {
			idx = 0
		}
	} else if recordID == 0xffff {
		idx = len(mc.mainSDRs.sdrs) - 1
	} else {
		idx = mc.mainSDRs.findEntry(recordID)
	}
	if idx < 0 {
		return errRsp(ipmi.IPMICmpNotPresent)
	}

	deleted := mc.mainSDRs.sdrs[idx].recordID
	mc.mainSDRs.sdrs = append(mc.mainSDRs.sdrs[:idx], mc.mainSDRs.sdrs[idx+1:]...)
	mc.mainSDRs.lastEraseTime = uint32(nowUnix() + mc.mainSDRs.timeOffset)

	rdata := make([]byte, 3)
	binary.LittleEndian.PutUint16(rdata[1:3], deleted)
	return rdata
}

func (mc *MC) handleClearSDRRepository(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 6 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}

	if mc.mainSDRs.flags&ipmi.IPMISDRSupportsReserve != 0 {
		reservation := binary.LittleEndian.Uint16(msg.data[0:2])
		if reservation != 0 && reservation != mc.mainSDRs.reservation {
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
		mc.mainSDRs.sdrs = nil
	}
	mc.mainSDRs.lastEraseTime = uint32(nowUnix() + mc.mainSDRs.timeOffset)

	// erasure completes immediately
	return []byte{0, 1}
}

func (mc *MC) handleGetSDRRepositoryTime(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	rdata := make([]byte, 5)
	binary.LittleEndian.PutUint32(rdata[1:5], uint32(nowUnix()+mc.mainSDRs.timeOffset))
	return rdata
}

func (mc *MC) handleSetSDRRepositoryTime(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if len(msg.data) < 4 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	mc.mainSDRs.timeOffset = int64(binary.LittleEndian.Uint32(msg.data[0:4])) - nowUnix()
	return []byte{0}
}

func (mc *MC) handleEnterSDRRepositoryUpdate(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	switch ipmi.SDRModal(mc.mainSDRs.flags) {
	case ipmi.IPMISDRModalUnspecified, ipmi.IPMISDRNonModalOnly:
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	mc.inUpdateMode = true
	return []byte{0}
}

func (mc *MC) handleExitSDRRepositoryUpdate(msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSDRRepository == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	switch ipmi.SDRModal(mc.mainSDRs.flags) {
	case ipmi.IPMISDRModalUnspecified, ipmi.IPMISDRNonModalOnly:
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	mc.inUpdateMode = false
	return []byte{0}
}

func (mc *MC) handleGetDeviceSDRInfo(lun uint8, msg *ipmiMsg) []byte {
	if mc.deviceSupport&ipmi.IPMIDevIDSensorDevice == 0 {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	flags := boolBit(mc.dynamicSensorPopulation) << 7
	for i := uint8(0); i < 4; i++ {
		flags |= boolBit(mc.lunHasSensors[i]) << i
	}
	rdata := []byte{0, mc.numSensorsPerLUN[lun&0x3], flags}
	if !mc.dynamicSensorPopulation {
		return rdata
	}
	rdata = append(rdata, 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(rdata[3:7], mc.sensorPopulationChangeTime)
	return rdata
}

func (mc *MC) handleReserveDeviceSDRRepository(lun uint8, msg *ipmiMsg) []byte {
	if !mc.hasDeviceSDRs {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	if !mc.dynamicSensorPopulation {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	r := &mc.deviceSDRs[lun&0x3]
	r.reservation++
	if r.reservation == 0 {
		r.reservation++
	}
	rdata := make([]byte, 3)
	binary.LittleEndian.PutUint16(rdata[1:3], r.reservation)
	return rdata
}

func (mc *MC) handleGetDeviceSDR(lun uint8, msg *ipmiMsg) []byte {
	if !mc.hasDeviceSDRs {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	return getFromRepo(&mc.deviceSDRs[lun&0x3], msg, mc.dynamicSensorPopulation)
}
