/* Fru_test.go
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package core

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/kraken-hpc/ipmiemu/lib/ipmi"
)

func TestFRU_AreaInfo(t *testing.T) {
	emu, mc := newTestEmu(t)
	if err := mc.AddFRUData(0, 64, []byte{1, 2, 3}); err != nil {
		t.Fatalf("AddFRUData: %v", err)
	}

	rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetFRUInventoryAreaInfo, 0x00))
	if rsp[0] != 0 || len(rsp) != 4 {
		t.Fatalf("rsp % x", rsp)
	}
	if binary.LittleEndian.Uint16(rsp[1:3]) != 64 {
		t.Errorf("length %d", binary.LittleEndian.Uint16(rsp[1:3]))
	}
	if rsp[3] != 0 {
		t.Errorf("access mode %#02x", rsp[3])
	}

	t.Run("unknown device", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetFRUInventoryAreaInfo, 0x07))
		if rsp[0] != ipmi.IPMICmpInvalidDataField {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
}

func TestFRU_WriteReadRoundTrip(t *testing.T) {
	emu, mc := newTestEmu(t)
	if err := mc.AddFRUData(2, 32, nil); err != nil {
		t.Fatalf("AddFRUData: %v", err)
	}

	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	rsp := emu.HandleMsg(0, append(storageReq(ipmi.IPMICmdWriteFRUData, 0x02, 0x08, 0x00), payload...))
	if rsp[0] != 0 || rsp[1] != uint8(len(payload)) {
		t.Fatalf("write rsp % x", rsp)
	}

	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdReadFRUData, 0x02, 0x08, 0x00, uint8(len(payload))))
	if rsp[0] != 0 {
		t.Fatalf("read cc %#02x", rsp[0])
	}
	if rsp[1] != uint8(len(payload)) || !bytes.Equal(rsp[2:], payload) {
		t.Errorf("read back % x", rsp)
	}

	t.Run("bytes outside the window untouched", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdReadFRUData, 0x02, 0x00, 0x00, 0x08))
		if rsp[0] != 0 {
			t.Fatalf("cc %#02x", rsp[0])
		}
		if !bytes.Equal(rsp[2:], make([]byte, 8)) {
			t.Errorf("leading bytes % x", rsp[2:])
		}
	})
}

func TestFRU_Bounds(t *testing.T) {
	emu, mc := newTestEmu(t)
	mc.AddFRUData(1, 16, nil)

	t.Run("read offset out of range", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdReadFRUData, 0x01, 0x10, 0x00, 0x01))
		if rsp[0] != ipmi.IPMICmpParameterOutOfRange {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
	t.Run("read clamps count", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdReadFRUData, 0x01, 0x0c, 0x00, 0xff))
		if rsp[0] != 0 || rsp[1] != 4 {
			t.Fatalf("rsp % x", rsp)
		}
	})
	t.Run("write never truncates", func(t *testing.T) {
		rsp := emu.HandleMsg(0, append(storageReq(ipmi.IPMICmdWriteFRUData, 0x01, 0x0c, 0x00),
			make([]byte, 8)...))
		if rsp[0] != ipmi.IPMICmpReqDataLengthExceeded {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
	t.Run("write offset out of range", func(t *testing.T) {
		rsp := emu.HandleMsg(0, append(storageReq(ipmi.IPMICmdWriteFRUData, 0x01, 0x20, 0x00),
			make([]byte, 2)...))
		if rsp[0] != ipmi.IPMICmpParameterOutOfRange {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
	t.Run("short request", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdReadFRUData, 0x01))
		if rsp[0] != ipmi.IPMICmpReqDataLengthInvalid {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
}

func TestFRU_ConfigValidation(t *testing.T) {
	_, mc := newTestEmu(t)

	if err := mc.AddFRUData(255, 8, nil); err == nil {
		t.Error("device id 255 accepted")
	}
	if err := mc.AddFRUData(0, 2, []byte{1, 2, 3}); err == nil {
		t.Error("oversize data accepted")
	}
}
