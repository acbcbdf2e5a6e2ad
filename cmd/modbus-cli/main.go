package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fieldbus-go/modbus"
)

func main() {
	app := &cli.App{
		Name:  "modbus-cli",
		Usage: "Command-line tool for Modbus communication",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "protocol", Aliases: []string{"p"}, Usage: "Protocol type: tcp or rtu", Required: true},
			&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Usage: "Connection address (TCP: host:port, RTU: /dev/ttyUSB0)", Required: true},
			&cli.IntFlag{Name: "slave-id", Aliases: []string{"s"}, Usage: "Modbus slave/unit ID", Value: 1},
			&cli.DurationFlag{Name: "timeout", Aliases: []string{"t"}, Usage: "Response timeout", Value: 300 * time.Millisecond},
			&cli.IntFlag{Name: "baud", Usage: "Baud rate (RTU only)", Value: 115200},
			&cli.IntFlag{Name: "data-bits", Usage: "Data bits (RTU only)", Value: 8},
			&cli.IntFlag{Name: "stop-bits", Usage: "Stop bits (RTU only)", Value: 1},
			&cli.StringFlag{Name: "parity", Usage: "Parity: none, odd, even (RTU only)", Value: "none"},
		},
		Commands: []*cli.Command{
			{
				Name:  "read-coils",
				Usage: "Read coils (function code 1)",
				Flags: []cli.Flag{startFlag(), countFlag("Number of coils to read (1-2000)")},
				Action: func(c *cli.Context) error {
					return withInstance(c, func(inst *modbus.Instance) error {
						bits, _, err := inst.ReadCoils(start(c), count(c))
						if err != nil {
							return err
						}
						printBits(start(c), bits)
						return nil
					})
				},
			},
			{
				Name:  "read-discrete-inputs",
				Usage: "Read discrete inputs (function code 2)",
				Flags: []cli.Flag{startFlag(), countFlag("Number of discrete inputs to read (1-2000)")},
				Action: func(c *cli.Context) error {
					return withInstance(c, func(inst *modbus.Instance) error {
						bits, _, err := inst.ReadDiscreteInputs(start(c), count(c))
						if err != nil {
							return err
						}
						printBits(start(c), bits)
						return nil
					})
				},
			},
			{
				Name:  "read-holding-registers",
				Usage: "Read holding registers (function code 3)",
				Flags: []cli.Flag{startFlag(), countFlag("Number of registers to read (1-125)")},
				Action: func(c *cli.Context) error {
					return withInstance(c, func(inst *modbus.Instance) error {
						values, _, err := inst.ReadHoldingRegisters(start(c), count(c))
						if err != nil {
							return err
						}
						printRegisters(start(c), values)
						return nil
					})
				},
			},
			{
				Name:  "read-input-registers",
				Usage: "Read input registers (function code 4)",
				Flags: []cli.Flag{startFlag(), countFlag("Number of registers to read (1-125)")},
				Action: func(c *cli.Context) error {
					return withInstance(c, func(inst *modbus.Instance) error {
						values, _, err := inst.ReadInputRegisters(start(c), count(c))
						if err != nil {
							return err
						}
						printRegisters(start(c), values)
						return nil
					})
				},
			},
			{
				Name:  "write-single-coil",
				Usage: "Write a single coil (function code 5)",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "address", Required: true},
					&cli.BoolFlag{Name: "on"},
				},
				Action: func(c *cli.Context) error {
					return withInstance(c, func(inst *modbus.Instance) error {
						_, err := inst.WriteSingleCoil(uint16(c.Uint("address")), c.Bool("on"))
						return err
					})
				},
			},
			{
				Name:  "write-single-register",
				Usage: "Write a single holding register (function code 6)",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "address", Required: true},
					&cli.UintFlag{Name: "value", Required: true},
				},
				Action: func(c *cli.Context) error {
					return withInstance(c, func(inst *modbus.Instance) error {
						_, err := inst.WriteSingleRegister(uint16(c.Uint("address")), uint16(c.Uint("value")))
						return err
					})
				},
			},
			{
				Name:  "write-multiple-registers",
				Usage: "Write a run of holding registers (function code 16)",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "address", Required: true},
					&cli.StringFlag{Name: "values", Usage: "comma-separated register values", Required: true},
				},
				Action: func(c *cli.Context) error {
					values, err := parseUint16List(c.String("values"))
					if err != nil {
						return err
					}
					return withInstance(c, func(inst *modbus.Instance) error {
						_, err := inst.WriteMultipleRegisters(uint16(c.Uint("address")), values)
						return err
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func startFlag() cli.Flag {
	return &cli.UintFlag{Name: "start", Usage: "Starting address", Required: true}
}

func countFlag(usage string) cli.Flag {
	return &cli.UintFlag{Name: "count", Usage: usage, Required: true}
}

func start(c *cli.Context) uint16 { return uint16(c.Uint("start")) }
func count(c *cli.Context) uint16 { return uint16(c.Uint("count")) }

// withInstance builds the Instance the global flags describe, runs fn
// against it, and tears it down afterward.
func withInstance(c *cli.Context, fn func(*modbus.Instance) error) error {
	inst, err := createInstance(c)
	if err != nil {
		return err
	}
	defer inst.Close()
	return fn(inst)
}

func createInstance(c *cli.Context) (*modbus.Instance, error) {
	protocol := c.String("protocol")
	address := c.String("address")
	slaveID := byte(c.Int("slave-id"))
	timeout := c.Duration("timeout")

	switch protocol {
	case "tcp":
		host, port, err := splitHostPort(address)
		if err != nil {
			return nil, err
		}
		transport := modbus.NewTCPClientTransport(modbus.TCPConfig{Host: host, Port: port})
		return modbus.NewInstance(transport, modbus.TransportTCPClient,
			modbus.WithSlaveAddress(slaveID),
			modbus.WithTimeouts(timeout, modbus.DefaultInterByteTimeout),
		), nil

	case "rtu":
		transport := modbus.NewRTUTransport(modbus.SerialConfig{
			Device:   address,
			BaudRate: c.Int("baud"),
			DataBits: c.Int("data-bits"),
			Parity:   parseParity(c.String("parity")),
			StopBits: parseStopBits(c.Int("stop-bits")),
		})
		return modbus.NewInstance(transport, modbus.TransportRTU,
			modbus.WithSlaveAddress(slaveID),
			modbus.WithTimeouts(timeout, modbus.DefaultInterByteTimeout),
		), nil

	default:
		return nil, fmt.Errorf("unsupported protocol: %s (must be tcp or rtu)", protocol)
	}
}

func splitHostPort(address string) (string, int, error) {
	host, portStr, found := strings.Cut(address, ":")
	if !found {
		return "", 0, fmt.Errorf("address %q must be host:port", address)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return "", 0, fmt.Errorf("address %q has an invalid port: %w", address, err)
	}
	return host, port, nil
}

func parseStopBits(bits int) modbus.StopBits {
	if bits == 2 {
		return modbus.TwoStopBits
	}
	return modbus.OneStopBit
}

func parseParity(parity string) modbus.Parity {
	switch parity {
	case "odd":
		return modbus.OddParity
	case "even":
		return modbus.EvenParity
	default:
		return modbus.NoParity
	}
}

func parseUint16List(s string) ([]uint16, error) {
	parts := strings.Split(s, ",")
	values := make([]uint16, len(parts))
	for i, p := range parts {
		var v uint16
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &v); err != nil {
			return nil, fmt.Errorf("invalid register value %q: %w", p, err)
		}
		values[i] = v
	}
	return values, nil
}

func printBits(start uint16, bits []bool) {
	for i, bit := range bits {
		v := 0
		if bit {
			v = 1
		}
		fmt.Printf("0x%04X: %d\n", start+uint16(i), v)
	}
}

func printRegisters(start uint16, values []uint16) {
	for i, v := range values {
		fmt.Printf("0x%04X: 0x%04X\n", start+uint16(i), v)
	}
}
