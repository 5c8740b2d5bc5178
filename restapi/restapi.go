/* restapi.go: read-only HTTP inspection API for an emulator domain
 *
 * Author: J. Lowell Wofford <lowell@lanl.gov>
 *
 * This software is open source software available under the BSD-3 license.
 * Copyright (c) 2021, Triad National Security, LLC
 * See LICENSE file for details.
 */

package restapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/kraken-hpc/ipmiemu/core"
	"github.com/kraken-hpc/ipmiemu/lib/types"
)

// A RestAPI serves JSON views of an emulator domain for operators and tests.
// It is strictly read-only; all mutation goes through IPMI commands.
type RestAPI struct {
	emu    *core.Emulator
	addr   string
	log    types.Logger
	router *mux.Router
	srv    *http.Server
}

type emuView struct {
	ID      string          `json:"id"`
	BMCAddr uint8           `json:"bmc_addr"`
	MCs     []core.MCStatus `json:"mcs"`
}

// New creates a RestAPI bound to addr (host:port) once Run is called
func New(emu *core.Emulator, addr string, log types.Logger) *RestAPI {
	r := &RestAPI{
		emu:  emu,
		addr: addr,
		log:  log,
	}
	r.setupRouter()
	return r
}

// Run serves until the listener is closed
func (r *RestAPI) Run() error {
	r.srv = &http.Server{
		Handler: handlers.CORS(
			handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{"GET"}),
		)(r.router),
		Addr: r.addr,
	}
	r.log.Logf(core.INFO, "restapi listening on %s", r.addr)
	return r.srv.ListenAndServe()
}

// Close shuts the HTTP server down
func (r *RestAPI) Close() error {
	if r.srv == nil {
		return nil
	}
	return r.srv.Close()
}

// Router gets the request router, mostly so tests can drive it directly
func (r *RestAPI) Router() http.Handler { return r.router }

func (r *RestAPI) setupRouter() {
	r.router = mux.NewRouter()
	r.router.HandleFunc("/emu", r.readEmu).Methods("GET")
	r.router.HandleFunc("/emu/mc/{addr}", r.readMC).Methods("GET")
	r.router.HandleFunc("/emu/mc/{addr}/sel", r.readSEL).Methods("GET")
	r.router.HandleFunc("/emu/mc/{addr}/sdrs", r.readSDRs).Methods("GET")
	r.router.HandleFunc("/emu/mc/{addr}/sensors", r.readSensors).Methods("GET")
	r.router.HandleFunc("/emu/mc/{addr}/frus", r.readFRUs).Methods("GET")
}

func (r *RestAPI) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.log.Logf(core.ERROR, "could not encode response: %v", err)
	}
}

// mcFromRequest resolves the {addr} path variable (decimal or 0x hex)
func (r *RestAPI) mcFromRequest(w http.ResponseWriter, req *http.Request) *core.MC {
	addr, err := strconv.ParseUint(mux.Vars(req)["addr"], 0, 8)
	if err != nil {
		http.Error(w, "bad MC address", http.StatusBadRequest)
		return nil
	}
	mc, err := r.emu.MCByAddr(uint8(addr))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return nil
	}
	return mc
}

func (r *RestAPI) readEmu(w http.ResponseWriter, req *http.Request) {
	r.emu.Lock()
	defer r.emu.Unlock()
	view := emuView{
		ID:      r.emu.ID().String(),
		BMCAddr: r.emu.BMCAddr(),
		MCs:     []core.MCStatus{},
	}
	for _, mc := range r.emu.MCs() {
		view.MCs = append(view.MCs, mc.Status())
	}
	r.writeJSON(w, view)
}

func (r *RestAPI) readMC(w http.ResponseWriter, req *http.Request) {
	r.emu.Lock()
	defer r.emu.Unlock()
	if mc := r.mcFromRequest(w, req); mc != nil {
		r.writeJSON(w, mc.Status())
	}
}

func (r *RestAPI) readSEL(w http.ResponseWriter, req *http.Request) {
	r.emu.Lock()
	defer r.emu.Unlock()
	if mc := r.mcFromRequest(w, req); mc != nil {
		r.writeJSON(w, mc.SELStatus())
	}
}

func (r *RestAPI) readSDRs(w http.ResponseWriter, req *http.Request) {
	r.emu.Lock()
	defer r.emu.Unlock()
	if mc := r.mcFromRequest(w, req); mc != nil {
		r.writeJSON(w, mc.SDRStatus())
	}
}

func (r *RestAPI) readSensors(w http.ResponseWriter, req *http.Request) {
	r.emu.Lock()
	defer r.emu.Unlock()
	if mc := r.mcFromRequest(w, req); mc != nil {
		r.writeJSON(w, mc.SensorsStatus())
	}
}

func (r *RestAPI) readFRUs(w http.ResponseWriter, req *http.Request) {
	r.emu.Lock()
	defer r.emu.Unlock()
	if mc := r.mcFromRequest(w, req); mc != nil {
		r.writeJSON(w, mc.FRUsStatus())
	}
}
