// Command modbus-sim runs a Modbus slave backed by an in-memory register
// table, for exercising masters without physical hardware. It can listen
// on TCP, open a real serial device, or — in the default rtu-pty mode —
// open a pseudo-terminal and print the slave-side path a client should
// dial.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/fieldbus-go/modbus"
	"github.com/fieldbus-go/modbus/internal/ptypair"
	"github.com/fieldbus-go/modbus/memstore"
)

// dataConfig is the JSON shape accepted by --config to seed initial
// register values: address keys as decimal strings, since JSON object
// keys are always strings.
type dataConfig struct {
	Coils            map[string]bool   `json:"coils"`
	DiscreteInputs   map[string]bool   `json:"discreteInputs"`
	HoldingRegisters map[string]uint16 `json:"holdingRegisters"`
	InputRegisters   map[string]uint16 `json:"inputRegisters"`
}

func loadStore(path string) (*memstore.Store, error) {
	store := memstore.New()
	if path == "" {
		return store, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg dataConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	store.SetCoils(reindex(cfg.Coils))
	store.SetDiscreteInputs(reindex(cfg.DiscreteInputs))
	store.SetHoldingRegisters(reindex(cfg.HoldingRegisters))
	store.SetInputRegisters(reindex(cfg.InputRegisters))
	return store, nil
}

// reindex converts a JSON object's decimal-string address keys into the
// uint16 address keys memstore's seeding methods expect.
func reindex[V any](src map[string]V) map[uint16]V {
	out := make(map[uint16]V, len(src))
	for k, v := range src {
		var addr uint16
		if _, err := fmt.Sscanf(k, "%d", &addr); err != nil {
			continue
		}
		out[addr] = v
	}
	return out
}

func main() {
	app := &cli.App{
		Name:  "modbus-sim",
		Usage: "Run a Modbus slave simulator",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Usage: "rtu, rtu-pty, or tcp", Value: "rtu-pty"},
			&cli.StringFlag{Name: "device", Usage: "serial device path (mode=rtu)"},
			&cli.IntFlag{Name: "baud", Value: 19200},
			&cli.StringFlag{Name: "listen", Usage: "host:port to listen on (mode=tcp)", Value: "127.0.0.1:5020"},
			&cli.IntFlag{Name: "slave-id", Value: 1},
			&cli.StringFlag{Name: "config", Usage: "JSON file seeding initial register values"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	store, err := loadStore(c.String("config"))
	if err != nil {
		return err
	}
	slaveID := byte(c.Int("slave-id"))
	logger := log.New(os.Stderr, "modbus-sim: ", log.LstdFlags)

	switch c.String("mode") {
	case "tcp":
		return runTCP(c.String("listen"), slaveID, store, logger)
	case "rtu":
		return runRTU(c.String("device"), c.Int("baud"), slaveID, store, logger)
	default:
		return runRTUPty(slaveID, store, logger)
	}
}

func runRTUPty(slaveID byte, store *memstore.Store, logger *log.Logger) error {
	pair, err := ptypair.Open()
	if err != nil {
		return err
	}
	defer pair.Close()

	logger.Printf("listening on %s (slave id %d)", pair.SlavePath, slaveID)
	inst := modbus.NewInstance(modbus.NewAdoptedTransport(pair), modbus.TransportAdopted,
		modbus.WithProtocol(modbus.ProtocolRTU),
		modbus.WithSlaveAddress(slaveID),
		modbus.WithCallbacks(store.Callbacks()),
		modbus.WithLogger(logger),
	)
	return serveForever(inst)
}

func runRTU(device string, baud int, slaveID byte, store *memstore.Store, logger *log.Logger) error {
	if device == "" {
		return fmt.Errorf("mode=rtu requires --device")
	}
	transport := modbus.NewRTUTransport(modbus.SerialConfig{Device: device, BaudRate: baud, Logger: logger})
	inst := modbus.NewInstance(transport, modbus.TransportRTU,
		modbus.WithSlaveAddress(slaveID),
		modbus.WithCallbacks(store.Callbacks()),
		modbus.WithLogger(logger),
	)
	defer inst.Close()
	logger.Printf("listening on %s (slave id %d)", device, slaveID)
	return serveForever(inst)
}

func runTCP(listen string, slaveID byte, store *memstore.Store, logger *log.Logger) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	defer ln.Close()
	logger.Printf("listening on %s (unit id %d)", listen, slaveID)

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			defer conn.Close()
			inst := modbus.NewInstance(modbus.NewAdoptedTransport(conn), modbus.TransportAdopted,
				modbus.WithProtocol(modbus.ProtocolTCP),
				modbus.WithSlaveAddress(slaveID),
				modbus.WithCallbacks(store.Callbacks()),
				modbus.WithLogger(logger),
			)
			if err := serveForever(inst); err != nil {
				logger.Printf("connection %s closed: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

// serveForever ticks inst until a transport error ends the session.
func serveForever(inst *modbus.Instance) error {
	for {
		if _, err := inst.Tick(); err != nil {
			return err
		}
	}
}
