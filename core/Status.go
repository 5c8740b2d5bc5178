/* Status.go: read-only snapshot views of MC state for inspection surfaces
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package core

import (
	"encoding/hex"
)

// MCStatus is a JSON-friendly snapshot of an MC
type MCStatus struct {
	IPMB             uint8  `json:"ipmb"`
	DeviceID         uint8  `json:"device_id"`
	HasDeviceSDRs    bool   `json:"has_device_sdrs"`
	DeviceRevision   uint8  `json:"device_revision"`
	MajorFwRev       uint8  `json:"major_fw_rev"`
	MinorFwRev       uint8  `json:"minor_fw_rev"`
	DeviceSupport    uint8  `json:"device_support"`
	EventReceiver    uint8  `json:"event_receiver"`
	EventReceiverLUN uint8  `json:"event_receiver_lun"`
	InUpdateMode     bool   `json:"in_update_mode"`
	Power            uint8  `json:"power"`
	SELCount         int    `json:"sel_count"`
	SELMaxCount      int    `json:"sel_max_count"`
	SDRCount         int    `json:"sdr_count"`
	FRUDevices       []int  `json:"fru_devices"`
	Sensors          int    `json:"sensors"`
}

// SELRecordStatus is one SEL record rendered for inspection
type SELRecordStatus struct {
	RecordID   uint16 `json:"record_id"`
	RecordType uint8  `json:"record_type"`
	Data       string `json:"data"`
}

// SDRRecordStatus is one SDR rendered for inspection
type SDRRecordStatus struct {
	RecordID uint16 `json:"record_id"`
	Length   int    `json:"length"`
	Data     string `json:"data"`
}

// FRUStatus is one FRU inventory area rendered for inspection
type FRUStatus struct {
	ID   uint8  `json:"id"`
	Size int    `json:"size"`
	Data string `json:"data"`
}

// SensorStatus is one sensor rendered for inspection
type SensorStatus struct {
	LUN              uint8    `json:"lun"`
	Num              uint8    `json:"num"`
	SensorType       uint8    `json:"sensor_type"`
	EventReadingCode uint8    `json:"event_reading_code"`
	Value            uint8    `json:"value"`
	EventsEnabled    bool     `json:"events_enabled"`
	ScanningEnabled  bool     `json:"scanning_enabled"`
	Thresholds       [6]uint8 `json:"thresholds"`
	EventStatus      [15]bool `json:"event_status"`
}

// Status builds a point-in-time snapshot of the MC
func (mc *MC) Status() MCStatus {
	st := MCStatus{
		IPMB:             mc.ipmb,
		DeviceID:         mc.deviceID,
		HasDeviceSDRs:    mc.hasDeviceSDRs,
		DeviceRevision:   mc.deviceRevision,
		MajorFwRev:       mc.majorFwRev,
		MinorFwRev:       mc.minorFwRev,
		DeviceSupport:    mc.deviceSupport,
		EventReceiver:    mc.eventReceiver,
		EventReceiverLUN: mc.eventReceiverLUN,
		InUpdateMode:     mc.inUpdateMode,
		Power:            mc.powerValue,
		SELCount:         len(mc.sel.entries),
		SELMaxCount:      mc.sel.maxCount,
		SDRCount:         len(mc.mainSDRs.sdrs),
	}
	st.FRUDevices = []int{}
	for i := range mc.frus {
		if mc.frus[i].data != nil {
			st.FRUDevices = append(st.FRUDevices, i)
		}
	}
	for lun := range mc.sensors {
		for num := range mc.sensors[lun] {
			if mc.sensors[lun][num] != nil {
				st.Sensors++
			}
		}
	}
	return st
}

// SELStatus renders every SEL record
func (mc *MC) SELStatus() []SELRecordStatus {
	r := []SELRecordStatus{}
	for _, e := range mc.sel.entries {
		r = append(r, SELRecordStatus{
			RecordID:   e.recordID,
			RecordType: e.data[2],
			Data:       hex.EncodeToString(e.data[:]),
		})
	}
	return r
}

// SDRStatus renders every main-repository record
func (mc *MC) SDRStatus() []SDRRecordStatus {
	r := []SDRRecordStatus{}
	for _, e := range mc.mainSDRs.sdrs {
		r = append(r, SDRRecordStatus{
			RecordID: e.recordID,
			Length:   len(e.data),
			Data:     hex.EncodeToString(e.data),
		})
	}
	return r
}

// FRUsStatus renders every populated FRU inventory area in device-id order
func (mc *MC) FRUsStatus() []FRUStatus {
	r := []FRUStatus{}
	for i := range mc.frus {
		if mc.frus[i].data == nil {
			continue
		}
		r = append(r, FRUStatus{
			ID:   uint8(i),
			Size: len(mc.frus[i].data),
			Data: hex.EncodeToString(mc.frus[i].data),
		})
	}
	return r
}

// SensorsStatus renders every sensor in LUN then number order
func (mc *MC) SensorsStatus() []SensorStatus {
	r := []SensorStatus{}
	for lun := range mc.sensors {
		for num := range mc.sensors[lun] {
			s := mc.sensors[lun][num]
			if s == nil {
				continue
			}
			r = append(r, SensorStatus{
				LUN:              s.lun,
				Num:              s.num,
				SensorType:       s.sensorType,
				EventReadingCode: s.eventReadingCode,
				Value:            s.value,
				EventsEnabled:    s.eventsEnabled,
				ScanningEnabled:  s.scanningEnabled,
				Thresholds:       s.thresholds,
				EventStatus:      s.eventStatus,
			})
		}
	}
	return r
}
