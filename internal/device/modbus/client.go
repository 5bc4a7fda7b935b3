// Package modbus reads and writes the dehumidifier register block over
// Modbus TCP.
package modbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"controlling_dehumidifier/internal/models"

	"github.com/goburrow/modbus"
)

// registerIO is the subset of modbus.Client the device needs.
type registerIO interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

type Config struct {
	Endpoint string
	UnitID   uint8
	Address  uint16
	Timeout  time.Duration
}

// Client is a single TCP connection to the unit. Requests are serialised.
type Client struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	io      registerIO
	address uint16
}

// NewClient dials the endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &Client{
		handler: h,
		io:      modbus.NewClient(h),
		address: cfg.Address,
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler == nil {
		return nil
	}
	return c.handler.Close()
}

// ReadState reads and decodes the whole register block.
func (c *Client) ReadState(ctx context.Context) (models.DeviceState, error) {
	if err := ctx.Err(); err != nil {
		return models.DeviceState{}, err
	}

	c.mu.Lock()
	data, err := c.io.ReadHoldingRegisters(c.address, RegisterCount)
	c.mu.Unlock()
	if err != nil {
		return models.DeviceState{}, err
	}
	return DecodeState(unpackRegisters(data))
}

// WriteState writes the commanded fields of st.
func (c *Client) WriteState(ctx context.Context, st models.DeviceState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := st.Validate(); err != nil {
		return err
	}

	regs := EncodeState(st)[:WritableCount]

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.io.WriteMultipleRegisters(c.address, uint16(len(regs)), packRegisters(regs))
	return err
}
