package orchestrator

import "errors"

// ErrSimulationActive is returned by ClearSimulation when a simulation
// run is still SCHEDULED/RUNNING, per spec §6's /sim/clear contract
// ("fails if active").
var ErrSimulationActive = errors.New("SimulationActive")
