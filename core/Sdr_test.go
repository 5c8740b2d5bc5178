/* Sdr_test.go
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

// testSDR builds a record with the given body length; data[5] carries the
// body length per the 6-byte header convention
func testSDR(bodyLen uint8, fill uint8) []byte {
	rec := make([]byte, int(bodyLen)+6)
	rec[2] = 0x51 // SDR version
	rec[3] = 0x01 // full sensor record
	rec[5] = bodyLen
	for i := 6; i < len(rec); i++ {
		rec[i] = fill
	}
	return rec
}

func TestSDR_AddGetRoundTrip(t *testing.T) {
	emu, _ := newTestEmu(t)

	rec := testSDR(10, 0x42)
	rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, rec...))
	if rsp[0] != 0 {
		t.Fatalf("add cc %#02x", rsp[0])
	}
	id := binary.LittleEndian.Uint16(rsp[1:3])
	if id == 0 || id == 0xffff {
		t.Fatalf("bad record id %#04x", id)
	}

	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDR,
		0x00, 0x00, uint8(id), uint8(id>>8), 0x00, uint8(len(rec))))
	if rsp[0] != 0 {
		t.Fatalf("get cc %#02x", rsp[0])
	}
	if rsp[1] != 0xff || rsp[2] != 0xff {
		t.Errorf("next id % x", rsp[1:3])
	}
	got := rsp[3:]
	want := append([]byte{}, rec...)
	binary.LittleEndian.PutUint16(want[0:2], id)
	if !bytes.Equal(got, want) {
		t.Errorf("round trip:\n got  % x\n want % x", got, want)
	}
}

func TestSDR_AddValidation(t *testing.T) {
	emu, _ := newTestEmu(t)

	t.Run("length mismatch", func(t *testing.T) {
		rec := testSDR(10, 0)
		rec[5] = 9
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, rec...))
		if rsp[0] != ipmi.IPMICmpSDRLengthInvalid {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
	t.Run("short request", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, 0x00, 0x00))
		if rsp[0] != ipmi.IPMICmpReqDataLengthInvalid {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
}

func TestSDR_ModalGating(t *testing.T) {
	emu, mc := newTestEmu(t)
	mc.SetSDRFlags(ipmi.IPMISDRSupportsReserve | ipmi.IPMISDRSupportsPartialAdd |
		ipmi.IPMISDRNonModalOnly<<5)

	t.Run("update mode commands rejected when non-modal", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdEnterSDRRepositoryUpdate))
		if rsp[0] != ipmi.IPMICmpInvalidCmd {
			t.Errorf("enter cc %#02x", rsp[0])
		}
		rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdExitSDRRepositoryUpdate))
		if rsp[0] != ipmi.IPMICmpInvalidCmd {
			t.Errorf("exit cc %#02x", rsp[0])
		}
	})

	t.Run("non-modal add requires update mode", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, testSDR(4, 0)...))
		if rsp[0] != ipmi.IPMICmpNotSupportedInState {
			t.Errorf("cc %#02x", rsp[0])
		}
		mc.inUpdateMode = true
		rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, testSDR(4, 0)...))
		if rsp[0] != 0 {
			t.Errorf("cc %#02x", rsp[0])
		}
		mc.inUpdateMode = false
	})
}

func TestSDR_PartialAdd(t *testing.T) {
	emu, mc := newTestEmu(t)
	mc.SetSDRFlags(ipmi.IPMISDRSupportsReserve | ipmi.IPMISDRSupportsPartialAdd |
		ipmi.IPMISDRModalOnly<<5)

	rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdEnterSDRRepositoryUpdate))
	if rsp[0] != 0 {
		t.Fatalf("enter update cc %#02x", rsp[0])
	}

	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdReserveSDRRepository))
	if rsp[0] != 0 {
		t.Fatalf("reserve cc %#02x", rsp[0])
	}
	res := binary.LittleEndian.Uint16(rsp[1:3])

	rec := testSDR(12, 0x66) // 18 record bytes total
	for i := range rec[6:] {
		rec[6+i] = uint8(i)
	}
	const n = 10 // record bytes in the first segment

	// segment 1: record id 0 starts a new record
	seg1 := append([]byte{uint8(res), uint8(res >> 8), 0x00, 0x00, 0x00, 0x00}, rec[:n]...)
	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdPartialAddSDR, seg1...))
	if rsp[0] != 0 {
		t.Fatalf("seg1 cc %#02x", rsp[0])
	}
	id := binary.LittleEndian.Uint16(rsp[1:3])
	if id == 0 {
		t.Fatal("no working record id")
	}

	// segment 2: continuation at the watermark, progress bit ends it
	seg2 := append([]byte{uint8(res), uint8(res >> 8), uint8(id), uint8(id >> 8), n, 0x01}, rec[n:]...)
	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdPartialAddSDR, seg2...))
	if rsp[0] != 0 {
		t.Fatalf("seg2 cc %#02x", rsp[0])
	}

	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDR,
		uint8(res), uint8(res>>8), uint8(id), uint8(id>>8), 0x00, uint8(len(rec))))
	if rsp[0] != 0 {
		t.Fatalf("get cc %#02x", rsp[0])
	}
	want := append([]byte{}, rec...)
	binary.LittleEndian.PutUint16(want[0:2], id)
	if !bytes.Equal(rsp[3:], want) {
		t.Errorf("partial add result:\n got  % x\n want % x", rsp[3:], want)
	}

	t.Run("matches single-shot add", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, rec...))
		if rsp[0] != 0 {
			t.Fatalf("add cc %#02x", rsp[0])
		}
		id2 := binary.LittleEndian.Uint16(rsp[1:3])
		rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDR,
			0x00, 0x00, uint8(id2), uint8(id2>>8), 0x00, uint8(len(rec))))
		if !bytes.Equal(rsp[3+2:], want[2:]) {
			t.Errorf("single-shot differs past the record id")
		}
	})
}

func TestSDR_PartialAddAborts(t *testing.T) {
	emu, mc := newTestEmu(t)
	mc.SetSDRFlags(ipmi.IPMISDRSupportsReserve | ipmi.IPMISDRSupportsPartialAdd |
		ipmi.IPMISDRModalBoth<<5)

	rec := testSDR(12, 0x11)
	start := func() uint16 {
		seg := append([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, rec[:10]...)
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdPartialAddSDR, seg...))
		if rsp[0] != 0 {
			t.Fatalf("seg1 cc %#02x", rsp[0])
		}
		return binary.LittleEndian.Uint16(rsp[1:3])
	}

	t.Run("offset gap", func(t *testing.T) {
		id := start()
		seg := append([]byte{0x00, 0x00, uint8(id), uint8(id >> 8), 11, 0x01}, rec[11:]...)
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdPartialAddSDR, seg...))
		if rsp[0] != ipmi.IPMICmpInvalidDataField {
			t.Errorf("cc %#02x", rsp[0])
		}
		if mc.partAddSDR != nil {
			t.Error("working record survived the abort")
		}
	})

	t.Run("reserve aborts working record", func(t *testing.T) {
		start()
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdReserveSDRRepository))
		if rsp[0] != 0 {
			t.Fatalf("reserve cc %#02x", rsp[0])
		}
		if mc.partAddSDR != nil {
			t.Error("working record survived the reservation")
		}
	})

	t.Run("continuation without start", func(t *testing.T) {
		seg := append([]byte{0x00, 0x00, 0x05, 0x00, 10, 0x01}, rec[10:]...)
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdPartialAddSDR, seg...))
		if rsp[0] != ipmi.IPMICmpUnknownErr {
			t.Errorf("cc %#02x", rsp[0])
		}
	})

	t.Run("overlong total", func(t *testing.T) {
		id := start()
		// 20 more bytes won't fit an 18-byte record
		long := make([]byte, 20)
		seg := append([]byte{0x00, 0x00, uint8(id), uint8(id >> 8), 10, 0x01}, long...)
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdPartialAddSDR, seg...))
		if rsp[0] != ipmi.IPMICmpSDRLengthInvalid {
			t.Errorf("cc %#02x", rsp[0])
		}
		if mc.partAddSDR != nil {
			t.Error("working record survived the abort")
		}
	})

	t.Run("short final total", func(t *testing.T) {
		id := start()
		// finish with only 4 more bytes; 14 != 18 total
		seg := append([]byte{0x00, 0x00, uint8(id), uint8(id >> 8), 10, 0x01}, rec[10:14]...)
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdPartialAddSDR, seg...))
		if rsp[0] != ipmi.IPMICmpSDRLengthInvalid {
			t.Errorf("cc %#02x", rsp[0])
		}
	})

	t.Run("first segment nonzero offset", func(t *testing.T) {
		seg := append([]byte{0x00, 0x00, 0x00, 0x00, 0x02, 0x00}, rec[:10]...)
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdPartialAddSDR, seg...))
		if rsp[0] != ipmi.IPMICmpInvalidDataField {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
}

func TestSDR_DeleteAndClear(t *testing.T) {
	emu, mc := newTestEmu(t)
	mc.mainSDRs.timeOffset = 0 // repository runs on wall time for this test

	var ids []uint16
	for i := 0; i < 3; i++ {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, testSDR(4, uint8(i))...))
		ids = append(ids, binary.LittleEndian.Uint16(rsp[1:3]))
	}

	rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdDeleteSDR,
		0x00, 0x00, uint8(ids[1]), uint8(ids[1]>>8)))
	if rsp[0] != 0 || binary.LittleEndian.Uint16(rsp[1:3]) != ids[1] {
		t.Fatalf("delete rsp % x", rsp)
	}
	if len(mc.mainSDRs.sdrs) != 2 {
		t.Fatalf("count %d", len(mc.mainSDRs.sdrs))
	}
	if mc.mainSDRs.lastEraseTime == 0 {
		t.Error("last_erase_time not updated")
	}

	// get with record id 0 walks from the head; next id skips the hole
	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDR,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x02))
	if rsp[0] != 0 || binary.LittleEndian.Uint16(rsp[1:3]) != ids[2] {
		t.Fatalf("get head rsp % x", rsp)
	}

	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdClearSDRRepository,
		0x00, 0x00, 'C', 'L', 'R', 0x00))
	if !bytes.Equal(rsp, []byte{0x00, 0x01}) {
		t.Fatalf("clear rsp % x", rsp)
	}
	if len(mc.mainSDRs.sdrs) != 0 {
		t.Error("repository not cleared")
	}

	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDR,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x02))
	if rsp[0] != ipmi.IPMICmpNotPresent {
		t.Errorf("cc %#02x", rsp[0])
	}
}

func TestSDR_GetBounds(t *testing.T) {
	emu, mc := newTestEmu(t)
	mc.SetSDRFlags(ipmi.IPMISDRSupportsReserve)
	rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, testSDR(4, 0x33)...))
	id := binary.LittleEndian.Uint16(rsp[1:3])

	t.Run("offset past record", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDR,
			0x00, 0x00, uint8(id), uint8(id>>8), 0x0a, 0x01))
		if rsp[0] != ipmi.IPMICmpParameterOutOfRange {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
	t.Run("count clamped to record end", func(t *testing.T) {
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDR,
			0x00, 0x00, uint8(id), uint8(id>>8), 0x08, 0xff))
		if rsp[0] != 0 || len(rsp) != 3+2 {
			t.Fatalf("rsp % x", rsp)
		}
	})
	t.Run("reservation checked", func(t *testing.T) {
		emu.HandleMsg(0, storageReq(ipmi.IPMICmdReserveSDRRepository))
		rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDR,
			0x55, 0x55, uint8(id), uint8(id>>8), 0x00, 0x04))
		if rsp[0] != ipmi.IPMICmpInvalidReservation {
			t.Errorf("cc %#02x", rsp[0])
		}
	})
}

func TestSDR_RepositoryInfo(t *testing.T) {
	emu, mc := newTestEmu(t)
	mc.SetSDRFlags(ipmi.IPMISDRSupportsGetAllocInfo)
	emu.HandleMsg(0, storageReq(ipmi.IPMICmdAddSDR, testSDR(4, 0)...))

	rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDRRepositoryInfo))
	if rsp[0] != 0 || len(rsp) != 15 {
		t.Fatalf("rsp % x", rsp)
	}
	if rsp[1] != ipmi.IPMIVersion1_5 {
		t.Errorf("version %#02x", rsp[1])
	}
	if count := binary.LittleEndian.Uint16(rsp[2:4]); count != 1 {
		t.Errorf("count %d", count)
	}
	// free space saturates at 0xfffe
	if space := binary.LittleEndian.Uint16(rsp[4:6]); space != 0xfffe {
		t.Errorf("space %#04x", space)
	}

	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDRRepositoryAllocInfo))
	if rsp[0] != 0 || len(rsp) != 10 {
		t.Fatalf("alloc rsp % x", rsp)
	}
	if free := binary.LittleEndian.Uint16(rsp[5:7]); free != uint16(ipmi.MaxNumSDRs-1) {
		t.Errorf("free %d", free)
	}
}

func TestSDR_Time(t *testing.T) {
	emu, _ := newTestEmu(t)

	rsp := emu.HandleMsg(0, storageReq(ipmi.IPMICmdSetSDRRepositoryTime, 0x00, 0x20, 0x00, 0x00))
	if rsp[0] != 0 {
		t.Fatalf("set cc %#02x", rsp[0])
	}
	rsp = emu.HandleMsg(0, storageReq(ipmi.IPMICmdGetSDRRepositoryTime))
	got := binary.LittleEndian.Uint32(rsp[1:5])
	if got < 0x2000 || got > 0x2002 {
		t.Errorf("time %#x", got)
	}
}

func TestSDR_DeviceRepositories(t *testing.T) {
	emu, _ := newTestEmu(t)
	mc, err := emu.AddMC(0x82, 0x82, true, 1, 1, 1, 0xbf, [3]uint8{}, [2]uint8{}, true)
	if err != nil {
		t.Fatalf("AddMC: %v", err)
	}
	emu.SetBMCAddr(0x82)

	rec := testSDR(8, 0x77)
	if err := mc.AddDeviceSDR(1, rec); err != nil {
		t.Fatalf("AddDeviceSDR: %v", err)
	}
	if !mc.lunHasSensors[1] || mc.numSensorsPerLUN[1] != 1 {
		t.Error("population bookkeeping wrong")
	}

	seReq := func(cmd uint8, data ...byte) []byte {
		return append([]byte{ipmi.IPMIFnSensorEventReq<<2 | 1, cmd}, data...)
	}

	t.Run("device sdr info", func(t *testing.T) {
		rsp := emu.HandleMsg(1, seReq(ipmi.IPMICmdGetDeviceSDRInfo))
		if rsp[0] != 0 || len(rsp) != 7 {
			t.Fatalf("rsp % x", rsp)
		}
		if rsp[1] != 1 {
			t.Errorf("sensor count %d", rsp[1])
		}
		if rsp[2]&0x80 == 0 || rsp[2]&0x02 == 0 {
			t.Errorf("flags %#02x", rsp[2])
		}
	})

	t.Run("reserve and get", func(t *testing.T) {
		rsp := emu.HandleMsg(1, seReq(ipmi.IPMICmdReserveDeviceSDRRepo))
		if rsp[0] != 0 {
			t.Fatalf("reserve cc %#02x", rsp[0])
		}
		res := binary.LittleEndian.Uint16(rsp[1:3])

		rsp = emu.HandleMsg(1, seReq(ipmi.IPMICmdGetDeviceSDR,
			uint8(res), uint8(res>>8), 0x00, 0x00, 0x00, uint8(len(rec))))
		if rsp[0] != 0 {
			t.Fatalf("get cc %#02x", rsp[0])
		}
		if !bytes.Equal(rsp[3+2:], rec[2:]) {
			t.Errorf("device SDR body differs")
		}

		rsp = emu.HandleMsg(1, seReq(ipmi.IPMICmdGetDeviceSDR,
			0x99, 0x99, 0x00, 0x00, 0x00, 0x04))
		if rsp[0] != ipmi.IPMICmpInvalidReservation {
			t.Errorf("cc %#02x", rsp[0])
		}
	})

	t.Run("static population rejects reserve", func(t *testing.T) {
		emu.SetBMCAddr(0x20)
		rsp := emu.HandleMsg(0, seReq(ipmi.IPMICmdReserveDeviceSDRRepo))
		if rsp[0] != ipmi.IPMICmpInvalidCmd {
			t.Errorf("cc %#02x", rsp[0])
		}
		emu.SetBMCAddr(0x82)
	})
}
