package hal

import (
	"sync"

	"tinygo.org/x/drivers"
)

// SimPinFactory is a host-simulated PinFactory: pins remember their last
// written level in memory instead of touching real GPIO hardware, so the
// graph builder and its gpio/servo modules can be exercised on a
// development machine with no board attached.
type SimPinFactory struct {
	mu   sync.Mutex
	pins map[int]*simPin
}

func NewSimPinFactory() *SimPinFactory {
	return &SimPinFactory{pins: make(map[int]*simPin)}
}

func (f *SimPinFactory) ByNumber(n int) (GPIOPin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[n]
	if !ok {
		p = &simPin{number: n}
		f.pins[n] = p
	}
	return p, true
}

type simPin struct {
	mu     sync.Mutex
	number int
	level  bool
}

func (p *simPin) ConfigureInput(Pull) error { return nil }
func (p *simPin) ConfigureOutput(initial bool) error {
	p.mu.Lock()
	p.level = initial
	p.mu.Unlock()
	return nil
}
func (p *simPin) Set(level bool) {
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}
func (p *simPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}
func (p *simPin) Number() int { return p.number }

// SimPWMFactory is the PWM analogue of SimPinFactory.
type SimPWMFactory struct {
	mu   sync.Mutex
	pins map[string]*simPWM
}

func NewSimPWMFactory() *SimPWMFactory {
	return &SimPWMFactory{pins: make(map[string]*simPWM)}
}

// Duty reads back the last duty cycle written to a named pin, for tests
// and diagnostics.
func (f *SimPWMFactory) Duty(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pins[name]; ok {
		return p.Duty()
	}
	return 0
}

func (f *SimPWMFactory) ByName(name string) (PWMPin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pins[name]
	if !ok {
		p = &simPWM{name: name}
		f.pins[name] = p
	}
	return p, true
}

type simPWM struct {
	mu   sync.Mutex
	name string
	duty float64
}

func (p *simPWM) SetDuty(fraction float64) error {
	p.mu.Lock()
	p.duty = fraction
	p.mu.Unlock()
	return nil
}

func (p *simPWM) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// SimI2CFactory hands out in-memory I2C buses: writes are recorded per
// device register and can be read back, both by Tx reads and by tests via
// Reg.
type SimI2CFactory struct {
	mu    sync.Mutex
	buses map[string]*SimI2CBus
}

func NewSimI2CFactory() *SimI2CFactory {
	return &SimI2CFactory{buses: make(map[string]*SimI2CBus)}
}

func (f *SimI2CFactory) ByID(id string) (drivers.I2C, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buses[id]
	if !ok {
		b = NewSimI2CBus()
		f.buses[id] = b
	}
	return b, true
}

// Bus returns the concrete simulated bus for test inspection.
func (f *SimI2CFactory) Bus(id string) *SimI2CBus {
	b, _ := f.ByID(id)
	return b.(*SimI2CBus)
}

// SimI2CBus models register-addressed devices: the first written byte of
// a transaction selects the register, the rest is its new contents; a
// read returns the selected register's contents.
type SimI2CBus struct {
	mu   sync.Mutex
	regs map[uint16]map[byte][]byte
}

func NewSimI2CBus() *SimI2CBus {
	return &SimI2CBus{regs: make(map[uint16]map[byte][]byte)}
}

func (b *SimI2CBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, ok := b.regs[addr]
	if !ok {
		dev = make(map[byte][]byte)
		b.regs[addr] = dev
	}
	if len(w) == 0 {
		return nil
	}
	reg := w[0]
	if len(w) > 1 {
		dev[reg] = append([]byte(nil), w[1:]...)
	}
	copy(r, dev[reg])
	return nil
}

// Reg reads back the last value written to a device register.
func (b *SimI2CBus) Reg(addr uint16, reg byte) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.regs[addr][reg]...)
}
