/* packer.go: reflection-based packing/unpacking of IPMI wire structs
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package ipmi

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Cksum computes the IPMB two's-complement checksum of data seeded with start
func Cksum(data []byte, start uint8) uint8 {
	csum := start
	for _, b := range data {
		csum += b
	}
	return uint8(-int8(csum))
}

// Packer serializes annotated packet structs.  Fields carry a `pack` tag:
//
//	""            plain field, packed in declaration order
//	"zeros"       reserved field, packed as zero bytes
//	"len=Field"   uint8 filled with the byte length of Field on pack
//	"cksum2=N"    uint8 filled with Cksum over all preceding bytes
//	"fill=N"      []byte consuming the remaining input on unpack, plus N
//	"authcodelen=Field"  []byte whose length depends on the auth type in Field
type Packer struct {
	ByteOrder binary.ByteOrder
}

func (p Packer) parseArgs(args string) map[string]string {
	r := make(map[string]string)
	for _, arg := range strings.Split(args, ",") {
		pair := strings.SplitN(arg, "=", 2)
		if len(pair) == 2 {
			r[strings.TrimSpace(pair[0])] = strings.TrimSpace(pair[1])
		} else {
			r[strings.TrimSpace(pair[0])] = ""
		}
	}
	return r
}

// Cksum2 is Cksum with a zero seed, the common message-trailer case
func (p Packer) Cksum2(buf []byte) uint8 {
	return Cksum(buf, 0)
}

func (p Packer) Pack(packet interface{}) (b []byte, e []error) {
	sv := reflect.Indirect(reflect.ValueOf(packet))
	st := sv.Type()
	if st.Kind() != reflect.Struct {
		e = append(e, fmt.Errorf("not a struct: %v", st))
		return
	}
	buf := make([]byte, 1500)
	last := 0
	for i := 0; i < st.NumField(); i++ {
		ft := st.Field(i)
		fv := sv.Field(i)
		flagStr, ok := ft.Tag.Lookup("pack")
		if !ok {
			continue
		}
		flags := p.parseArgs(flagStr)

		switch ft.Type.Kind() {
		case reflect.Array:
			if ft.Type.Elem().Kind() != reflect.Uint8 {
				e = append(e, fmt.Errorf("arrays must be of bytes"))
				continue
			}
			if _, ok := flags["zeros"]; !ok {
				reflect.Copy(reflect.ValueOf(buf[last:]), fv)
			}
			last += ft.Type.Len()
		case reflect.Slice:
			if ft.Type.Elem().Kind() != reflect.Uint8 {
				e = append(e, fmt.Errorf("slices must be of bytes"))
				continue
			}
			if _, ok := flags["zeros"]; !ok {
				copy(buf[last:], fv.Bytes())
			}
			last += fv.Len()
		case reflect.Uint8:
			if _, ok := flags["cksum2"]; ok {
				fv.Set(reflect.ValueOf(p.Cksum2(buf[0:last])))
			}
			if ref, ok := flags["len"]; ok {
				refv := sv.FieldByName(ref)
				if refv.IsValid() && !refv.IsNil() {
					fv.Set(reflect.ValueOf(uint8(refv.Len())))
				}
			}
			buf[last] = uint8(fv.Uint())
			last++
		case reflect.Uint16:
			p.ByteOrder.PutUint16(buf[last:], uint16(fv.Uint()))
			last += 2
		case reflect.Uint32:
			p.ByteOrder.PutUint32(buf[last:], uint32(fv.Uint()))
			last += 4
		default:
			e = append(e, fmt.Errorf("unhandled kind: %v", ft.Type.Kind()))
		}
	}
	b = make([]byte, last)
	copy(b, buf)
	return
}

func (p Packer) Unpack(b []byte, packet interface{}) (e []error) {
	sv := reflect.Indirect(reflect.ValueOf(packet))
	st := sv.Type()
	if st.Kind() != reflect.Struct {
		e = append(e, fmt.Errorf("not a struct: %v", st))
		return
	}
	last := 0
	for i := 0; i < st.NumField(); i++ {
		ft := st.Field(i)
		fv := sv.Field(i)
		flagStr, ok := ft.Tag.Lookup("pack")
		if !ok {
			continue
		}
		flags := p.parseArgs(flagStr)

		switch ft.Type.Kind() {
		case reflect.Array:
			if ft.Type.Elem().Kind() != reflect.Uint8 {
				e = append(e, fmt.Errorf("arrays must be of bytes"))
				continue
			}
			flen := ft.Type.Len()
			if len(b) < last+flen {
				e = append(e, fmt.Errorf("short packet: %d < %d", len(b), last+flen))
				return
			}
			if _, ok := flags["zeros"]; !ok && fv.CanSet() {
				reflect.Copy(fv, reflect.ValueOf(b[last:last+flen]))
			}
			last += flen
		case reflect.Slice:
			if ft.Type.Elem().Kind() != reflect.Uint8 {
				e = append(e, fmt.Errorf("slices must be of bytes"))
				continue
			}
			flen := len(b[last:])
			if offStr, ok := flags["fill"]; ok {
				off, err := strconv.Atoi(offStr)
				if err != nil {
					e = append(e, err)
					continue
				}
				flen += off
			}
			if ref, ok := flags["authcodelen"]; ok {
				ac := sv.FieldByName(ref)
				if ac.Kind() != reflect.Uint8 {
					e = append(e, fmt.Errorf("authcodelen ref must be uint8"))
					continue
				}
				if uint8(ac.Uint()) == IPMIAuthTypeNONE {
					flen = 0
				} else {
					flen = 16
				}
			}
			if flen < 0 || len(b) < last+flen {
				e = append(e, fmt.Errorf("short packet: %d < %d", len(b), last+flen))
				return
			}
			if _, ok := flags["zeros"]; !ok && flen != 0 && fv.CanSet() {
				fv.SetBytes(b[last : last+flen])
			}
			last += flen
		case reflect.Uint8:
			if len(b) < last+1 {
				e = append(e, fmt.Errorf("short packet: %d < %d", len(b), last+1))
				return
			}
			if _, ok := flags["cksum2"]; ok {
				if ck := p.Cksum2(b[0:last]); ck != b[last] {
					e = append(e, fmt.Errorf("checksum mismatch: %x != %x", ck, b[last]))
				}
			}
			if _, ok := flags["zeros"]; !ok && fv.CanSet() {
				fv.Set(reflect.ValueOf(uint8(b[last])))
			}
			last++
		case reflect.Uint16:
			if len(b) < last+2 {
				e = append(e, fmt.Errorf("short packet: %d < %d", len(b), last+2))
				return
			}
			if _, ok := flags["zeros"]; !ok && fv.CanSet() {
				fv.Set(reflect.ValueOf(p.ByteOrder.Uint16(b[last:])))
			}
			last += 2
		case reflect.Uint32:
			if len(b) < last+4 {
				e = append(e, fmt.Errorf("short packet: %d < %d", len(b), last+4))
				return
			}
			if _, ok := flags["zeros"]; !ok && fv.CanSet() {
				fv.Set(reflect.ValueOf(p.ByteOrder.Uint32(b[last:])))
			}
			last += 4
		default:
			e = append(e, fmt.Errorf("unhandled kind: %v", ft.Type.Kind()))
		}
	}
	return
}

// PackMust packs and panics on structural errors; only use on known-good structs
func (p Packer) PackMust(i interface{}) []byte {
	b, es := p.Pack(i)
	if len(es) > 0 {
		panic(fmt.Sprintf("%v", es))
	}
	return b
}
