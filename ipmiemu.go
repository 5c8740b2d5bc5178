/* ipmiemu.go: the ipmiemu executable; loads a persona config and serves
 * IPMI over UDP with an HTTP inspection API
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package main

import (
	"encoding/hex"
	"flag"
	"io/ioutil"
	"os"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/kraken-hpc/ipmiemu/core"
	"github.com/kraken-hpc/ipmiemu/lanserv"
	"github.com/kraken-hpc/ipmiemu/lib/types"
	"github.com/kraken-hpc/ipmiemu/restapi"
)

// Globals
var verbose bool
var debug bool
var Log *log.Logger

// SensorConfig describes one sensor; masks follow the wire encodings
type SensorConfig struct {
	LUN                uint8    `yaml:"lun"`
	Num                uint8    `yaml:"num"`
	Type               uint8    `yaml:"type"`
	ReadingCode        uint8    `yaml:"reading_code"`
	Value              uint8    `yaml:"value"`
	EventsEnabled      bool     `yaml:"events_enabled"`
	ScanningEnabled    bool     `yaml:"scanning_enabled"`
	EventSupport       uint8    `yaml:"event_support"`
	AssertSupported    uint16   `yaml:"assert_supported"`
	DeassertSupported  uint16   `yaml:"deassert_supported"`
	AssertEnabled      uint16   `yaml:"assert_enabled"`
	DeassertEnabled    uint16   `yaml:"deassert_enabled"`
	HysteresisSupport  uint8    `yaml:"hysteresis_support"`
	PositiveHysteresis uint8    `yaml:"positive_hysteresis"`
	NegativeHysteresis uint8    `yaml:"negative_hysteresis"`
	ThresholdSupport   uint8    `yaml:"threshold_support"`
	ThresholdSupported uint8    `yaml:"threshold_supported"`
	Thresholds         [6]uint8 `yaml:"thresholds,flow"`
}

// FRUConfig describes one inventory area; data is hex-encoded
type FRUConfig struct {
	ID   uint8  `yaml:"id"`
	Size int    `yaml:"size"`
	Data string `yaml:"data"`
}

// DeviceSDRConfig is one hex-encoded device SDR with its LUN
type DeviceSDRConfig struct {
	LUN  uint8  `yaml:"lun"`
	Data string `yaml:"data"`
}

// SELConfig enables the SEL with a capacity and support-flag mask
type SELConfig struct {
	MaxEntries int   `yaml:"max_entries"`
	Flags      uint8 `yaml:"flags"`
}

// MCConfig describes one management controller
type MCConfig struct {
	IPMB                    uint8             `yaml:"ipmb"`
	DeviceID                uint8             `yaml:"device_id"`
	HasDeviceSDRs           bool              `yaml:"has_device_sdrs"`
	DeviceRevision          uint8             `yaml:"device_revision"`
	MajorFwRev              uint8             `yaml:"major_fw_rev"`
	MinorFwRev              uint8             `yaml:"minor_fw_rev"`
	DeviceSupport           uint8             `yaml:"device_support"`
	MfgID                   [3]uint8          `yaml:"mfg_id,flow"`
	ProductID               [2]uint8          `yaml:"product_id,flow"`
	DynamicSensorPopulation bool              `yaml:"dynamic_sensor_population"`
	SEL                     *SELConfig        `yaml:"sel"`
	SDRFlags                uint8             `yaml:"sdr_flags"`
	SDRs                    []string          `yaml:"sdrs"`
	DeviceSDRs              []DeviceSDRConfig `yaml:"device_sdrs"`
	FRUs                    []FRUConfig       `yaml:"frus"`
	Sensors                 []SensorConfig    `yaml:"sensors"`
}

// Config is the top-level persona file
type Config struct {
	BMC       uint8      `yaml:"bmc"`
	LanListen string     `yaml:"lan_listen"`
	APIListen string     `yaml:"api_listen"`
	MCs       []MCConfig `yaml:"mcs"`
}

func maskToBools15(mask uint16) (r [15]bool) {
	for i := range r {
		r[i] = mask>>uint(i)&1 != 0
	}
	return
}

func maskToBools6(mask uint8) (r [6]bool) {
	for i := range r {
		r[i] = mask>>uint(i)&1 != 0
	}
	return
}

// buildEmulator drives the core configuration API from a parsed Config
func buildEmulator(cfg *Config, l types.Logger) (*core.Emulator, error) {
	emu := core.NewEmulator(l)
	if err := emu.SetBMCAddr(cfg.BMC); err != nil {
		return nil, err
	}
	for _, mcc := range cfg.MCs {
		mc, err := emu.AddMC(mcc.IPMB, mcc.DeviceID, mcc.HasDeviceSDRs,
			mcc.DeviceRevision, mcc.MajorFwRev, mcc.MinorFwRev,
			mcc.DeviceSupport, mcc.MfgID, mcc.ProductID,
			mcc.DynamicSensorPopulation)
		if err != nil {
			return nil, err
		}
		if mcc.SEL != nil {
			mc.EnableSEL(mcc.SEL.MaxEntries, mcc.SEL.Flags)
		}
		mc.SetSDRFlags(mcc.SDRFlags)
		for _, s := range mcc.SDRs {
			data, err := hex.DecodeString(s)
			if err != nil {
				return nil, err
			}
			if err := mc.AddMainSDR(data); err != nil {
				return nil, err
			}
		}
		for _, ds := range mcc.DeviceSDRs {
			data, err := hex.DecodeString(ds.Data)
			if err != nil {
				return nil, err
			}
			if err := mc.AddDeviceSDR(ds.LUN, data); err != nil {
				return nil, err
			}
		}
		for _, f := range mcc.FRUs {
			data, err := hex.DecodeString(f.Data)
			if err != nil {
				return nil, err
			}
			if err := mc.AddFRUData(f.ID, f.Size, data); err != nil {
				return nil, err
			}
		}
		for _, s := range mcc.Sensors {
			if err := mc.AddSensor(s.LUN, s.Num, s.Type, s.ReadingCode); err != nil {
				return nil, err
			}
			if err := mc.SensorSetEventSupport(s.LUN, s.Num,
				s.EventsEnabled, s.ScanningEnabled, s.EventSupport,
				maskToBools15(s.AssertSupported), maskToBools15(s.DeassertSupported),
				maskToBools15(s.AssertEnabled), maskToBools15(s.DeassertEnabled)); err != nil {
				return nil, err
			}
			if err := mc.SensorSetHysteresis(s.LUN, s.Num,
				s.HysteresisSupport, s.PositiveHysteresis, s.NegativeHysteresis); err != nil {
				return nil, err
			}
			if err := mc.SensorSetThreshold(s.LUN, s.Num, s.ThresholdSupport,
				maskToBools6(s.ThresholdSupported), s.Thresholds); err != nil {
				return nil, err
			}
			if err := mc.SensorSetValue(s.LUN, s.Num, s.Value, false); err != nil {
				return nil, err
			}
		}
	}
	return emu, nil
}

func main() {
	var configFile string
	var lanAddr string
	var apiAddr string
	flag.StringVar(&configFile, "c", "ipmiemu.yaml", "name of persona config file to use")
	flag.StringVar(&lanAddr, "l", "", "override the LAN listen address")
	flag.StringVar(&apiAddr, "a", "", "override the API listen address")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.Parse()

	Log = log.New()
	if verbose {
		Log.SetLevel(log.DebugLevel)
	}
	if debug {
		Log.SetLevel(log.TraceLevel)
	}

	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		Log.Fatalf("could not read config file %s: %v", configFile, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		Log.Fatalf("failed to parse config file %s: %v", configFile, err)
	}
	if lanAddr != "" {
		cfg.LanListen = lanAddr
	}
	if apiAddr != "" {
		cfg.APIListen = apiAddr
	}
	if cfg.LanListen == "" {
		cfg.LanListen = "0.0.0.0:623"
	}
	if len(cfg.MCs) == 0 {
		Log.Fatal("no MCs defined in the persona config")
	}
	Log.Debugf("parsed config:\n%s", spew.Sdump(cfg))

	lv := core.INFO
	if verbose {
		lv = core.DEBUG
	}
	if debug {
		lv = core.DDDEBUG
	}
	wl := &core.WriterLogger{}
	wl.RegisterWriter(os.Stdout)
	wl.SetModule("ipmiemu")
	wl.SetLoggerLevel(lv)

	emu, err := buildEmulator(cfg, wl)
	if err != nil {
		Log.Fatalf("failed to build emulator: %v", err)
	}
	Log.Infof("emulator %s ready with %d MCs", emu.ID(), len(emu.MCs()))

	lc := make(chan core.LoggerEvent)
	go core.ServiceLoggerListener(wl, lc)

	if cfg.APIListen != "" {
		al := &core.ServiceLogger{}
		al.RegisterChannel(lc)
		al.SetModule("restapi")
		al.SetLoggerLevel(lv)
		api := restapi.New(emu, cfg.APIListen, al)
		go func() {
			if err := api.Run(); err != nil {
				Log.Errorf("restapi exited: %v", err)
			}
		}()
	}

	ll := &core.ServiceLogger{}
	ll.RegisterChannel(lc)
	ll.SetModule("lanserv")
	ll.SetLoggerLevel(lv)
	srv := lanserv.New(emu, cfg.LanListen, ll)
	if err := srv.Run(); err != nil {
		Log.Fatalf("lanserv exited: %v", err)
	}
}
