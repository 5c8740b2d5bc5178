/* const.go: IPMI 1.5/2.0 wire constants used by the emulator
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package ipmi

// RMCP constants
const (
	RMCPVersion1_0 uint8 = 0x06

	// Class bitmasks
	RMCPClassNormal uint8 = 0x00
	RMCPClassACK    uint8 = 0x80
	RMCPClassASF    uint8 = 0x06
	RMCPClassIPMI   uint8 = 0x07
	RMCPClassOEM    uint8 = 0x08

	RMCPSeqNoACK uint8 = 0xff
)

// ASF constants
const (
	ASFIANA              uint32 = 0x11be
	ASFTypePing          uint8  = 0x80
	ASFTypePong          uint8  = 0x40
	ASFTagUnidirectional uint8  = 0xff

	// bitmask
	ASFEntitiesIPMISupport uint8 = 0x80
	ASFEntitiesVersion1_0  uint8 = 0x01
)

// Auth types for the session header
const (
	IPMIAuthTypeOEM    uint8 = 0x05
	IPMIAuthTypePasswd uint8 = 0x04
	IPMIAuthTypeMD5    uint8 = 0x02
	IPMIAuthTypeMD2    uint8 = 0x01
	IPMIAuthTypeNONE   uint8 = 0x00
)

// IPMI NetFn codes
const (
	IPMIFnChassisReq     uint8 = 0x00
	IPMIFnChassisRes     uint8 = 0x01
	IPMIFnBridgeReq      uint8 = 0x02
	IPMIFnBridgeRes      uint8 = 0x03
	IPMIFnSensorEventReq uint8 = 0x04
	IPMIFnSensorEventRes uint8 = 0x05
	IPMIFnAppReq         uint8 = 0x06
	IPMIFnAppRes         uint8 = 0x07
	IPMIFnFirmwareReq    uint8 = 0x08
	IPMIFnFirmwareRes    uint8 = 0x09
	IPMIFnStorageReq     uint8 = 0x0a
	IPMIFnStorageRes     uint8 = 0x0b
	IPMIFnTransportReq   uint8 = 0x0c
	IPMIFnTransportRes   uint8 = 0x0d
	IPMIFnGroupReq       uint8 = 0x2c
	IPMIFnGroupRes       uint8 = 0x2d
	IPMIFnOEMReq         uint8 = 0x2e
	IPMIFnOEMRes         uint8 = 0x2f
	IPMIFnCtrlOEMReq     uint8 = 0x30
	IPMIFnCtrlOEMRes     uint8 = 0x31
)

// Completion codes
const (
	IPMICmpNorm                  uint8 = 0x00
	IPMICmpSDRLengthInvalid      uint8 = 0x80 // command-specific, Add/Partial Add SDR
	IPMICmpNAKOnWrite            uint8 = 0x83 // IPMB NAK, no destination responder
	IPMICmpBusy                  uint8 = 0xc0
	IPMICmpInvalidCmd            uint8 = 0xc1
	IPMICmpOutOfSpace            uint8 = 0xc4
	IPMICmpInvalidReservation    uint8 = 0xc5
	IPMICmpReqDataLengthInvalid  uint8 = 0xc7
	IPMICmpParameterOutOfRange   uint8 = 0xc9
	IPMICmpReqDataLengthExceeded uint8 = 0xca
	IPMICmpNotPresent            uint8 = 0xcb
	IPMICmpInvalidDataField      uint8 = 0xcc
	IPMICmpNotSupportedInState   uint8 = 0xd5
	IPMICmpUnknownErr            uint8 = 0xff
)

var IPMICmpString = map[uint8]string{
	IPMICmpNorm:                  "Command completed normally.",
	IPMICmpSDRLengthInvalid:      "Record length invalid.",
	IPMICmpNAKOnWrite:            "NAK on write.",
	IPMICmpBusy:                  "Node busy.",
	IPMICmpInvalidCmd:            "Invalid command.",
	IPMICmpOutOfSpace:            "Out of space.",
	IPMICmpInvalidReservation:    "Reservation canceled or invalid reservation ID.",
	IPMICmpReqDataLengthInvalid:  "Request data length invalid.",
	IPMICmpParameterOutOfRange:   "Parameter out of range.",
	IPMICmpReqDataLengthExceeded: "Cannot return number of requested data bytes.",
	IPMICmpNotPresent:            "Requested sensor, data, or record not present.",
	IPMICmpInvalidDataField:      "Invalid data field in request.",
	IPMICmpNotSupportedInState:   "Not supported in present state.",
	IPMICmpUnknownErr:            "Unspecified error.",
}

// App netfn commands
const (
	IPMICmdGetDeviceID uint8 = 0x01
	IPMICmdSendMessage uint8 = 0x34
)

// Sensor/Event netfn commands
const (
	IPMICmdSetEventReceiver     uint8 = 0x00
	IPMICmdGetEventReceiver     uint8 = 0x01
	IPMICmdGetDeviceSDRInfo     uint8 = 0x20
	IPMICmdGetDeviceSDR         uint8 = 0x21
	IPMICmdReserveDeviceSDRRepo uint8 = 0x22
	IPMICmdRearmSensorEvents    uint8 = 0x2a
	IPMICmdGetSensorEventStatus uint8 = 0x2b
	IPMICmdSetSensorHysteresis  uint8 = 0x24
	IPMICmdGetSensorHysteresis  uint8 = 0x25
	IPMICmdSetSensorThreshold   uint8 = 0x26
	IPMICmdGetSensorThreshold   uint8 = 0x27
	IPMICmdSetSensorEventEnable uint8 = 0x28
	IPMICmdGetSensorEventEnable uint8 = 0x29
	IPMICmdGetSensorReading     uint8 = 0x2d
	IPMICmdSetSensorType        uint8 = 0x2e
	IPMICmdGetSensorType        uint8 = 0x2f

	IPMICmdGetSensorReadingFactors uint8 = 0x23
)

// Storage netfn commands
const (
	IPMICmdGetFRUInventoryAreaInfo uint8 = 0x10
	IPMICmdReadFRUData             uint8 = 0x11
	IPMICmdWriteFRUData            uint8 = 0x12

	IPMICmdGetSDRRepositoryInfo      uint8 = 0x20
	IPMICmdGetSDRRepositoryAllocInfo uint8 = 0x21
	IPMICmdReserveSDRRepository      uint8 = 0x22
	IPMICmdGetSDR                    uint8 = 0x23
	IPMICmdAddSDR                    uint8 = 0x24
	IPMICmdPartialAddSDR             uint8 = 0x25
	IPMICmdDeleteSDR                 uint8 = 0x26
	IPMICmdClearSDRRepository        uint8 = 0x27
	IPMICmdGetSDRRepositoryTime      uint8 = 0x28
	IPMICmdSetSDRRepositoryTime      uint8 = 0x29
	IPMICmdEnterSDRRepositoryUpdate  uint8 = 0x2a
	IPMICmdExitSDRRepositoryUpdate   uint8 = 0x2b
	IPMICmdRunInitializationAgent    uint8 = 0x2c

	IPMICmdGetSELInfo          uint8 = 0x40
	IPMICmdGetSELAllocInfo     uint8 = 0x41
	IPMICmdReserveSEL          uint8 = 0x42
	IPMICmdGetSELEntry         uint8 = 0x43
	IPMICmdAddSELEntry         uint8 = 0x44
	IPMICmdPartialAddSELEntry  uint8 = 0x45
	IPMICmdDeleteSELEntry      uint8 = 0x46
	IPMICmdClearSEL            uint8 = 0x47
	IPMICmdGetSELTime          uint8 = 0x48
	IPMICmdSetSELTime          uint8 = 0x49
	IPMICmdGetAuxiliaryLogStat uint8 = 0x5a
	IPMICmdSetAuxiliaryLogStat uint8 = 0x5b
)

// OEM0 (0x30) netfn commands
const (
	IPMICmdSetPower uint8 = 0x01
	IPMICmdGetPower uint8 = 0x02
)

// Get Device ID device_support bits
const (
	IPMIDevIDChassisDevice uint8 = 1 << 7
	IPMIDevIDBridge        uint8 = 1 << 6
	IPMIDevIDIPMBEventGen  uint8 = 1 << 5
	IPMIDevIDIPMBEventRcv  uint8 = 1 << 4
	IPMIDevIDFRUInventory  uint8 = 1 << 3
	IPMIDevIDSELDevice     uint8 = 1 << 2
	IPMIDevIDSDRRepository uint8 = 1 << 1
	IPMIDevIDSensorDevice  uint8 = 1 << 0
)

// SEL support flag bits and flag mask
const (
	IPMISELOverflowFlag      uint8 = 1 << 7
	IPMISELSupportsDelete    uint8 = 1 << 3
	IPMISELSupportsPartial   uint8 = 1 << 2
	IPMISELSupportsReserve   uint8 = 1 << 1
	IPMISELSupportsAllocInfo uint8 = 1 << 0

	IPMISELSupportMask uint8 = 0x0b
)

// SDR repository support flag bits
const (
	IPMISDROverflowFlag         uint8 = 1 << 7
	IPMISDRSupportsDelete       uint8 = 1 << 3
	IPMISDRSupportsPartialAdd   uint8 = 1 << 2
	IPMISDRSupportsReserve      uint8 = 1 << 1
	IPMISDRSupportsGetAllocInfo uint8 = 1 << 0
	IPMISDRModalUnspecified     uint8 = 0
	IPMISDRNonModalOnly         uint8 = 1
	IPMISDRModalOnly            uint8 = 2
	IPMISDRModalBoth            uint8 = 3
)

// SDRModal extracts the modal-operation field from repository flags (bits 5-6)
func SDRModal(flags uint8) uint8 {
	return (flags >> 5) & 0x3
}

// Sensor hysteresis support
const (
	IPMIHysteresisSupportNone     uint8 = 0
	IPMIHysteresisSupportReadable uint8 = 1
	IPMIHysteresisSupportSettable uint8 = 2
	IPMIHysteresisSupportFixed    uint8 = 3
)

// Sensor threshold access support
const (
	IPMIThresholdAccessNone     uint8 = 0
	IPMIThresholdAccessReadable uint8 = 1
	IPMIThresholdAccessSettable uint8 = 2
	IPMIThresholdAccessFixed    uint8 = 3
)

// Sensor event support
const (
	IPMIEventSupportPerState     uint8 = 0
	IPMIEventSupportEntireSensor uint8 = 1
	IPMIEventSupportGlobalEnable uint8 = 2
	IPMIEventSupportNone         uint8 = 3
)

// Event directions
const (
	IPMIAssertion   uint8 = 0
	IPMIDeassertion uint8 = 1
)

// Event/reading type codes
const (
	IPMIEventReadingTypeThreshold uint8 = 0x01
)

// Misc wire values
const (
	// IPMIVersion1_5 is the BCD version byte reported by Get Device ID,
	// Get SEL Info and Get SDR Repository Info
	IPMIVersion1_5 uint8 = 0x51

	// IPMIEventMsgRev is the event message revision for IPMI 1.5 events
	IPMIEventMsgRev uint8 = 0x04

	// IPMIOEMRecordTypeBoundary divides timestamped system event records
	// from OEM records copied verbatim
	IPMIOEMRecordTypeBoundary uint8 = 0xe0

	// IPMISlaveMask strips the read/write bit from an IPMB slave address
	IPMISlaveMask uint8 = 0xfe

	// IPMISELRecordSize is the fixed SEL record size in bytes
	IPMISELRecordSize int = 16

	// MaxSDRLength is the largest SDR record (6 header bytes + 255 body)
	MaxSDRLength int = 261
	// MaxNumSDRs is the advertised repository capacity
	MaxNumSDRs int = 1024

	// MaxMsgReturnData is the response buffer capacity of a LAN channel
	MaxMsgReturnData int = 1000
)
