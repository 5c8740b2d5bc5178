/* packets.go: RMCP/ASF/IPMI LAN packet definitions
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package ipmi

type RMCPHeader struct {
	Version        uint8  `pack:""`
	reserved       uint8  `pack:"zeros"`
	SequenceNumber uint8  `pack:""`
	Class          uint8  `pack:""`
	Data           []byte `pack:"fill=0"`
}

type ASFMessageHeader struct {
	IANA     uint32 `pack:""`
	Type     uint8  `pack:""`
	Tag      uint8  `pack:""`
	reserved uint8  `pack:"zeros"`
	DataLen  uint8  `pack:"len=Data"`
	Data     []byte `pack:"fill=0"`
}

type ASFMessagePong struct {
	IANA         uint32  `pack:""`
	OEM          uint32  `pack:""`
	Entities     uint8   `pack:""`
	Interactions uint8   `pack:""`
	reserved     [6]byte `pack:"zeros"`
}

type IPMISessionHeader struct {
	AuthType              uint8  `pack:""`
	SessionSequenceNumber uint32 `pack:""`
	SessionID             uint32 `pack:""`
	MsgAuthCode           []byte `pack:"authcodelen=AuthType"`
	PayloadLength         uint8  `pack:"len=Payload"`
	Payload               []byte `pack:"fill=0"`
}

// IPMIRequest is the IPMB-format message inside a session payload, as seen by
// the responder: rsAddr/netFn first, rqAddr/rqSeq after the header checksum.
type IPMIRequest struct {
	RsAddr      uint8  `pack:""`
	NetFnLun    uint8  `pack:""`
	HdrChecksum uint8  `pack:"cksum2=0"`
	RqAddr      uint8  `pack:""`
	RqSeq       uint8  `pack:""`
	Cmd         uint8  `pack:""`
	Data        []byte `pack:"fill=-1"`
	Checksum    uint8  `pack:"cksum2=0"`
}

// IPMIResponse is the IPMB-format reply; Data already carries the completion
// code at its head.
type IPMIResponse struct {
	RqAddr      uint8  `pack:""`
	NetFnLun    uint8  `pack:""`
	HdrChecksum uint8  `pack:"cksum2=0"`
	RsAddr      uint8  `pack:""`
	RqSeq       uint8  `pack:""`
	Cmd         uint8  `pack:""`
	Data        []byte `pack:"fill=-1"`
	Checksum    uint8  `pack:"cksum2=0"`
}
