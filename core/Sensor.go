/* Sensor.go: per-LUN sensor state, threshold checking, and event generation
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

	"github.com/kraken-hpc/ipmiemu/lib/ipmi"
)

// Threshold slot order: lower-non-critical, lower-critical,
// lower-non-recoverable, upper-non-critical, upper-critical,
// upper-non-recoverable.
type sensor struct {
	num uint8
	lun uint8

	sensorType       uint8
	eventReadingCode uint8

	value uint8

	scanningEnabled bool
	eventsEnabled   bool

	hysteresisSupport  uint8
	positiveHysteresis uint8
	negativeHysteresis uint8

	thresholdSupport   uint8
	thresholdSupported [6]bool
	thresholds         [6]uint8

	// first index is 0 for assertion, 1 for deassertion
	eventSupport   uint8
	eventSupported [2][15]bool
	eventEnabled   [2][15]bool

	eventStatus [15]bool
}

// sensorAt validates a (lun, num) pair against the sparse sensor table
func (mc *MC) sensorAt(lun, num uint8) *sensor {
	if lun >= 4 || num >= 255 {
		return nil
	}
	return mc.sensors[lun][num]
}

// AddSensor creates an empty sensor at (lun, num)
func (mc *MC) AddSensor(lun, num, sensorType, eventReadingCode uint8) error {
	if lun >= 4 || num >= 255 {
		return fmt.Errorf("sensor address out of range: lun %d num %d", lun, num)
	}
	if mc.sensors[lun][num] != nil {
		return fmt.Errorf("sensor %d/%d already exists", lun, num)
	}
	mc.sensors[lun][num] = &sensor{
		num:              num,
		lun:              lun,
		sensorType:       sensorType,
		eventReadingCode: eventReadingCode,
	}
	return nil
}

// SensorSetValue sets the current reading and re-runs threshold checking
func (mc *MC) SensorSetValue(lun, num, value uint8, genEvent bool) error {
	s := mc.sensorAt(lun, num)
	if s == nil {
		return fmt.Errorf("no sensor at lun %d num %d", lun, num)
	}
	s.value = value
	mc.checkThresholds(s, genEvent)
	return nil
}

// SensorSetBit sets one discrete event-state bit, firing an event on change
func (mc *MC) SensorSetBit(lun, num, bit uint8, value bool, genEvent bool) error {
	s := mc.sensorAt(lun, num)
	if s == nil {
		return fmt.Errorf("no sensor at lun %d num %d", lun, num)
	}
	if bit >= 15 {
		return fmt.Errorf("event bit out of range: %d", bit)
	}
	mc.setBit(s, bit, value, genEvent)
	return nil
}

// SensorSetHysteresis configures hysteresis support and values
func (mc *MC) SensorSetHysteresis(lun, num, support, positive, negative uint8) error {
	s := mc.sensorAt(lun, num)
	if s == nil {
		return fmt.Errorf("no sensor at lun %d num %d", lun, num)
	}
	s.hysteresisSupport = support
	s.positiveHysteresis = positive
	s.negativeHysteresis = negative
	return nil
}

// SensorSetThreshold configures threshold support, per-slot support and values
func (mc *MC) SensorSetThreshold(lun, num, support uint8, supported [6]bool, values [6]uint8) error {
	s := mc.sensorAt(lun, num)
	if s == nil {
		return fmt.Errorf("no sensor at lun %d num %d", lun, num)
	}
	s.thresholdSupport = support
	s.thresholdSupported = supported
	s.thresholds = values
	return nil
}

// SensorSetEventSupport configures the event support mode and masks
func (mc *MC) SensorSetEventSupport(lun, num uint8, eventsEnabled, scanning bool, support uint8, assertSupported, deassertSupported, assertEnabled, deassertEnabled [15]bool) error {
	s := mc.sensorAt(lun, num)
	if s == nil {
		return fmt.Errorf("no sensor at lun %d num %d", lun, num)
	}
	s.eventsEnabled = eventsEnabled
	s.scanningEnabled = scanning
	s.eventSupport = support
	s.eventSupported[0] = assertSupported
	s.eventSupported[1] = deassertSupported
	s.eventEnabled[0] = assertEnabled
	s.eventEnabled[1] = deassertEnabled
	return nil
}

// doEvent synthesizes an event record into the SEL of the configured event
// receiver.  Receivers that don't resolve drop the event silently.
func (mc *MC) doEvent(s *sensor, genEvent bool, direction, byte1, byte2, byte3 uint8) {
	if mc.eventReceiver == 0 || !s.eventsEnabled || !genEvent {
		return
	}
	dest, err := mc.emu.MCByAddr(mc.eventReceiver)
	if err != nil {
		return
	}

	var data [13]uint8
	// timestamp bytes are rewritten by the receiving SEL
	data[4] = mc.ipmb
	data[5] = s.lun
	data[6] = ipmi.IPMIEventMsgRev
	data[7] = s.sensorType
	data[8] = s.num
	data[9] = direction<<7 | s.eventReadingCode
	data[10] = byte1
	data[11] = byte2
	data[12] = byte3

	dest.AddToSEL(0x02, data[:])
}

func (mc *MC) setBit(s *sensor, bit uint8, value bool, genEvent bool) {
	if value == s.eventStatus[bit] {
		return
	}
	s.eventStatus[bit] = value
	if value && s.eventEnabled[0][bit] {
		mc.doEvent(s, genEvent, ipmi.IPMIAssertion, bit, 0, 0)
	} else if !value && s.eventEnabled[1][bit] {
		mc.doEvent(s, genEvent, ipmi.IPMIDeassertion, bit, 0, 0)
	}
}

// checkThresholds re-evaluates all supported threshold states against the
// current value.  Hysteresis applies only on the deassert side; assertion has
// no hysteresis band.
func (mc *MC) checkThresholds(s *sensor, genEvent bool) {
	var bitsToSet, bitsToClear uint8

	for i := 0; i < 3; i++ {
		if !s.thresholdSupported[i] {
			continue
		}
		if s.value <= s.thresholds[i] {
			bitsToSet |= 1 << uint(i)
		} else if int(s.value)-int(s.negativeHysteresis) > int(s.thresholds[i]) {
			bitsToClear |= 1 << uint(i)
		}
	}
	for i := 3; i < 6; i++ {
		if !s.thresholdSupported[i] {
			continue
		}
		if s.value >= s.thresholds[i] {
			bitsToSet |= 1 << uint(i)
		} else if int(s.value)+int(s.positiveHysteresis) < int(s.thresholds[i]) {
			bitsToClear |= 1 << uint(i)
		}
	}

	// Lower thresholds only assert downward, upper thresholds only assert
	// upward; the event offset encodes the slot and direction.
	for i := 0; i < 3; i++ {
		if bitsToSet&(1<<uint(i)) != 0 && !s.eventStatus[i] {
			s.eventStatus[i] = true
			if s.eventEnabled[0][i*2] {
				mc.doEvent(s, genEvent, ipmi.IPMIAssertion,
					uint8(0x50|(i*2)), s.value, s.thresholds[i])
			}
		} else if bitsToClear&(1<<uint(i)) != 0 && s.eventStatus[i] {
			s.eventStatus[i] = false
			if s.eventEnabled[1][i*2] {
				mc.doEvent(s, genEvent, ipmi.IPMIDeassertion,
					uint8(0x50|(i*2)), s.value, s.thresholds[i])
			}
		}
	}
	for i := 3; i < 6; i++ {
		if bitsToSet&(1<<uint(i)) != 0 && !s.eventStatus[i] {
			s.eventStatus[i] = true
			if s.eventEnabled[0][i*2+1] {
				mc.doEvent(s, genEvent, ipmi.IPMIAssertion,
					uint8(0x50|(i*2+1)), s.value, s.thresholds[i])
			}
		} else if bitsToClear&(1<<uint(i)) != 0 && s.eventStatus[i] {
			s.eventStatus[i] = false
			if s.eventEnabled[1][i*2+1] {
				mc.doEvent(s, genEvent, ipmi.IPMIDeassertion,
					uint8(0x50|(i*2+1)), s.value, s.thresholds[i])
			}
		}
	}
}

func (mc *MC) handleSetSensorHysteresis(lun uint8, msg *ipmiMsg) []byte {
	if len(msg.data) < 4 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	s := mc.sensorAt(lun, msg.data[0])
	if s == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	if s.hysteresisSupport != ipmi.IPMIHysteresisSupportSettable {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	s.positiveHysteresis = msg.data[2]
	s.negativeHysteresis = msg.data[3]
	return []byte{0}
}

func (mc *MC) handleGetSensorHysteresis(lun uint8, msg *ipmiMsg) []byte {
	if len(msg.data) < 1 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	s := mc.sensorAt(lun, msg.data[0])
	if s == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	if s.hysteresisSupport != ipmi.IPMIHysteresisSupportSettable &&
		s.hysteresisSupport != ipmi.IPMIHysteresisSupportReadable {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}
	return []byte{0, s.positiveHysteresis, s.negativeHysteresis}
}

func (mc *MC) handleSetSensorThresholds(lun uint8, msg *ipmiMsg) []byte {
	if len(msg.data) < 8 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	s := mc.sensorAt(lun, msg.data[0])
	if s == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	if s.eventReadingCode != ipmi.IPMIEventReadingTypeThreshold ||
		s.thresholdSupport != ipmi.IPMIThresholdAccessSettable {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	for i := 0; i < 6; i++ {
		if msg.data[1]&(1<<uint(i)) != 0 && !s.thresholdSupported[i] {
			return errRsp(ipmi.IPMICmpInvalidDataField)
		}
	}
	for i := 0; i < 6; i++ {
		if msg.data[1]&(1<<uint(i)) != 0 {
			s.thresholds[i] = msg.data[i+2]
		}
	}

	mc.checkThresholds(s, true)
	return []byte{0}
}

func (mc *MC) handleGetSensorThresholds(lun uint8, msg *ipmiMsg) []byte {
	if len(msg.data) < 1 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	s := mc.sensorAt(lun, msg.data[0])
	if s == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	if s.eventReadingCode != ipmi.IPMIEventReadingTypeThreshold ||
		(s.thresholdSupport != ipmi.IPMIThresholdAccessSettable &&
			s.thresholdSupport != ipmi.IPMIThresholdAccessReadable) {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	rdata := make([]byte, 8)
	for i := 0; i < 6; i++ {
		if s.thresholdSupported[i] {
			rdata[1] |= 1 << uint(i)
			rdata[2+i] = s.thresholds[i]
		}
	}
	return rdata
}

func (mc *MC) handleSetSensorEventEnable(lun uint8, msg *ipmiMsg) []byte {
	if len(msg.data) < 2 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	s := mc.sensorAt(lun, msg.data[0])
	if s == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	if s.eventSupport == ipmi.IPMIEventSupportNone ||
		s.eventSupport == ipmi.IPMIEventSupportGlobalEnable {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	op := (msg.data[1] >> 4) & 0x3
	if s.eventSupport == ipmi.IPMIEventSupportEntireSensor && op != 0 {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	if op == 3 {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}

	s.eventsEnabled = msg.data[1]&0x80 != 0
	s.scanningEnabled = msg.data[1]&0x40 != 0

	if op == 0 {
		// only the global enables change
		return []byte{0}
	}
	enable := op == 1

	e := 0
	for i := 2; i <= 3 && i < len(msg.data); i++ {
		for j := uint(0); j < 8; j, e = j+1, e+1 {
			if e < 15 && msg.data[i]>>j&1 != 0 {
				s.eventEnabled[0][e] = enable
			}
		}
	}
	e = 0
	for i := 4; i <= 5 && i < len(msg.data); i++ {
		for j := uint(0); j < 8; j, e = j+1, e+1 {
			if e < 15 && msg.data[i]>>j&1 != 0 {
				s.eventEnabled[1][e] = enable
			}
		}
	}

	return []byte{0}
}

func (mc *MC) handleGetSensorEventEnable(lun uint8, msg *ipmiMsg) []byte {
	if len(msg.data) < 1 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	s := mc.sensorAt(lun, msg.data[0])
	if s == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	if s.eventSupport == ipmi.IPMIEventSupportNone ||
		s.eventSupport == ipmi.IPMIEventSupportGlobalEnable {
		return errRsp(ipmi.IPMICmpInvalidCmd)
	}

	global := boolBit(s.eventsEnabled)<<7 | boolBit(s.scanningEnabled)<<6
	if s.eventSupport == ipmi.IPMIEventSupportEntireSensor {
		return []byte{0, global}
	}

	rdata := make([]byte, 6)
	rdata[1] = global
	e := 0
	for i := 2; i <= 3; i++ {
		for j := uint(0); j < 8; j, e = j+1, e+1 {
			if e < 15 && s.eventEnabled[0][e] {
				rdata[i] |= 1 << j
			}
		}
	}
	e = 0
	for i := 4; i <= 5; i++ {
		for j := uint(0); j < 8; j, e = j+1, e+1 {
			if e < 15 && s.eventEnabled[1][e] {
				rdata[i] |= 1 << j
			}
		}
	}
	return rdata
}

func (mc *MC) handleGetSensorReading(lun uint8, msg *ipmiMsg) []byte {
	if len(msg.data) < 1 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	s := mc.sensorAt(lun, msg.data[0])
	if s == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}

	rdata := make([]byte, 5)
	rdata[1] = s.value
	rdata[2] = boolBit(s.eventsEnabled)<<7 | boolBit(s.scanningEnabled)<<6
	e := 0
	for i := 3; i <= 4; i++ {
		for j := uint(0); j < 8; j, e = j+1, e+1 {
			if e < 15 && s.eventStatus[e] {
				rdata[i] |= 1 << j
			}
		}
	}
	return rdata
}

func (mc *MC) handleGetSensorType(lun uint8, msg *ipmiMsg) []byte {
	if len(msg.data) < 1 {
		return errRsp(ipmi.IPMICmpReqDataLengthInvalid)
	}
	s := mc.sensorAt(lun, msg.data[0])
	if s == nil {
		return errRsp(ipmi.IPMICmpInvalidDataField)
	}
	return []byte{0, s.sensorType, s.eventReadingCode}
}
