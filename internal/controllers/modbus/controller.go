package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/Agrid-Dev/thermoptim/internal/logger"
	"github.com/Agrid-Dev/thermoptim/internal/ports"
	"github.com/Agrid-Dev/thermoptim/internal/run"
)

// Config for the Modbus controller.
type Config struct {
	Addr   string
	UnitID byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
}

// Register map, read with function 4 (and mirrored on function 3).
const (
	RegMAE = iota
	RegR2
	RegSavingsPct
	RegSavingsKWh
	RegRecords
	RegMeanSetpoint

	numRegisters
)

// Undefined is reported for a metric that has no value (NaN or a nil
// percentage). It is never produced by a defined value.
const Undefined uint16 = 0x8000

type Controller struct {
	svc ports.RunService
	cfg Config

	serv *mbserver.Server
}

func New(svc ports.RunService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	return &Controller{svc: svc, cfg: cfg}, nil
}

// Run starts the Modbus server. Reads are answered from the run snapshot,
// every write function is refused. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.
	serv.RegisterFunctionHandler(3, c.readRegisters)
	serv.RegisterFunctionHandler(4, c.readRegisters)

	refuse := func(*mbserver.Server, mbserver.Framer) ([]byte, *mbserver.Exception) {
		return []byte{}, &mbserver.IllegalFunction
	}
	for _, fn := range []uint8{5, 6, 15, 16} {
		serv.RegisterFunctionHandler(fn, refuse)
	}

	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}
	logger.WithComponent("modbus").WithField("addr", c.cfg.Addr).Info("listening")

	// Block until ctx.Done()
	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

func (c *Controller) readRegisters(_ *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
	data := frame.GetData()
	if len(data) < 4 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	start := int(binary.BigEndian.Uint16(data[0:2]))
	qty := int(binary.BigEndian.Uint16(data[2:4]))
	if qty == 0 || qty > 125 {
		return []byte{}, &mbserver.IllegalDataValue
	}
	if start+qty > numRegisters {
		return []byte{}, &mbserver.IllegalDataAddress
	}

	regs := registers(c.svc.Get())
	byteCount := qty * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i, r := range regs[start : start+qty] {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
	}
	return resp, &mbserver.Success
}

// registers encodes the snapshot as the register map. Model accuracy comes
// from the held-out partition.
func registers(s run.Snapshot) [numRegisters]uint16 {
	var regs [numRegisters]uint16
	regs[RegMAE] = encodeScaled(s.Metrics.MAE, 100)
	regs[RegR2] = encodeScaled(s.Metrics.R2, 1000)
	regs[RegSavingsPct] = Undefined
	if s.Report.SavingsPct != nil {
		regs[RegSavingsPct] = encodeScaled(*s.Report.SavingsPct, 100)
	}
	regs[RegSavingsKWh] = encodeScaled(s.Report.TotalSavingsKWh, 1)
	regs[RegRecords] = uint16(min(max(s.Report.Records, 0), math.MaxUint16))
	regs[RegMeanSetpoint] = encodeScaled(s.Report.MeanSetpoint, 100)
	return regs
}

// encodeScaled stores round(v*scale) as a two's complement int16, clamped
// to [-32767, 32767] so that Undefined stays free.
func encodeScaled(v, scale float64) uint16 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Undefined
	}
	r := math.Round(v * scale)
	r = min(max(r, -math.MaxInt16), math.MaxInt16)
	return uint16(int16(r))
}

// DecodeScaled is the inverse of the register encoding; ok is false for
// Undefined.
func DecodeScaled(u uint16, scale float64) (v float64, ok bool) {
	if u == Undefined {
		return math.NaN(), false
	}
	return float64(int16(u)) / scale, true
}
