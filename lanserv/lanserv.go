/* lanserv.go: session-less RMCP/IPMI-over-UDP transport for the emulator
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package lanserv

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/kraken-hpc/ipmiemu/core"
	"github.com/kraken-hpc/ipmiemu/lib/ipmi"
	"github.com/kraken-hpc/ipmiemu/lib/types"
)

var packer = ipmi.Packer{ByteOrder: binary.BigEndian}

// A LanServ answers RMCP/ASF presence pings and session-less (auth NONE,
// session id 0) IPMI LAN requests against one emulator domain.  Requests are
// handled synchronously in arrival order, which satisfies the engine's
// serialization requirement.
type LanServ struct {
	emu  *core.Emulator
	addr string
	log  types.Logger
	conn *net.UDPConn
}

// New creates a LanServ bound to addr (host:port) once Run is called
func New(emu *core.Emulator, addr string, log types.Logger) *LanServ {
	return &LanServ{
		emu:  emu,
		addr: addr,
		log:  log,
	}
}

// Run listens and serves until the socket is closed
func (l *LanServ) Run() error {
	if err := l.listen(); err != nil {
		return err
	}
	return l.serve()
}

func (l *LanServ) listen() error {
	uaddr, err := net.ResolveUDPAddr("udp4", l.addr)
	if err != nil {
		return fmt.Errorf("could not resolve %s: %v", l.addr, err)
	}
	l.conn, err = net.ListenUDP("udp4", uaddr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %v", l.addr, err)
	}
	l.log.Logf(core.INFO, "lanserv listening on %s", l.conn.LocalAddr())
	return nil
}

func (l *LanServ) serve() error {
	buf := make([]byte, 4096)
	for {
		n, raddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}
		if rsp := l.handlePacket(buf[:n]); rsp != nil {
			if _, err := l.conn.WriteToUDP(rsp, raddr); err != nil {
				l.log.Logf(core.ERROR, "send to %s failed: %v", raddr, err)
			}
		}
	}
}

// Close shuts the socket down; Run returns after the next read
func (l *LanServ) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// handlePacket decodes one datagram and builds the reply; nil means drop
func (l *LanServ) handlePacket(pkt []byte) []byte {
	var hdr ipmi.RMCPHeader
	if es := packer.Unpack(pkt, &hdr); len(es) > 0 {
		l.log.Logf(core.DEBUG, "bad RMCP header: %v", es)
		return nil
	}
	if hdr.Version != ipmi.RMCPVersion1_0 {
		l.log.Logf(core.DEBUG, "unsupported RMCP version %#02x", hdr.Version)
		return nil
	}

	switch hdr.Class {
	case ipmi.RMCPClassASF:
		return l.handleASF(&hdr)
	case ipmi.RMCPClassIPMI:
		return l.handleIPMI(&hdr)
	default:
		l.log.Logf(core.DEBUG, "unsupported RMCP class %#02x", hdr.Class)
		return nil
	}
}

// handleASF answers presence pings with a pong
func (l *LanServ) handleASF(hdr *ipmi.RMCPHeader) []byte {
	var msg ipmi.ASFMessageHeader
	if es := packer.Unpack(hdr.Data, &msg); len(es) > 0 {
		l.log.Logf(core.DEBUG, "bad ASF message: %v", es)
		return nil
	}
	if msg.Type != ipmi.ASFTypePing {
		return nil
	}

	pong := packer.PackMust(&ipmi.ASFMessagePong{
		IANA:     ipmi.ASFIANA,
		Entities: ipmi.ASFEntitiesIPMISupport | ipmi.ASFEntitiesVersion1_0,
	})
	return packer.PackMust(&ipmi.RMCPHeader{
		Version:        ipmi.RMCPVersion1_0,
		SequenceNumber: hdr.SequenceNumber,
		Class:          ipmi.RMCPClassASF,
		Data: packer.PackMust(&ipmi.ASFMessageHeader{
			IANA: ipmi.ASFIANA,
			Type: ipmi.ASFTypePong,
			Tag:  msg.Tag,
			Data: pong,
		}),
	})
}

// handleIPMI unwraps the session and IPMB framing, runs the request through
// the engine, and frames the response
func (l *LanServ) handleIPMI(hdr *ipmi.RMCPHeader) []byte {
	var sess ipmi.IPMISessionHeader
	if es := packer.Unpack(hdr.Data, &sess); len(es) > 0 {
		l.log.Logf(core.DEBUG, "bad session header: %v", es)
		return nil
	}
	if sess.AuthType != ipmi.IPMIAuthTypeNONE || sess.SessionID != 0 {
		l.log.Logf(core.DEBUG, "only session-less requests are supported")
		return nil
	}

	var req ipmi.IPMIRequest
	if es := packer.Unpack(sess.Payload, &req); len(es) > 0 {
		l.log.Logf(core.DEBUG, "bad IPMB message: %v", es)
		return nil
	}

	netfn := req.NetFnLun >> 2
	lun := req.NetFnLun & 0x3

	ereq := append([]byte{req.NetFnLun, req.Cmd}, req.Data...)
	rsp := l.emu.HandleMsg(lun, ereq)

	// OEM transport hooks get first claim on the response.
	if bmc, err := l.emu.MCByAddr(l.emu.BMCAddr()); err == nil && bmc.OemHandleRsp != nil {
		if bmc.OemHandleRsp(netfn|1, req.Cmd, rsp) {
			l.log.Logf(core.DDEBUG, "response consumed by OEM hook")
			return nil
		}
	}

	payload := packer.PackMust(&ipmi.IPMIResponse{
		RqAddr:   req.RqAddr,
		NetFnLun: (netfn|1)<<2 | (req.RqSeq & 0x3),
		RsAddr:   req.RsAddr,
		RqSeq:    req.RqSeq,
		Cmd:      req.Cmd,
		Data:     rsp,
	})
	return packer.PackMust(&ipmi.RMCPHeader{
		Version:        ipmi.RMCPVersion1_0,
		SequenceNumber: ipmi.RMCPSeqNoACK,
		Class:          ipmi.RMCPClassIPMI,
		Data: packer.PackMust(&ipmi.IPMISessionHeader{
			AuthType: ipmi.IPMIAuthTypeNONE,
			Payload:  payload,
		}),
	})
}
