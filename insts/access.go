package insts

// Addressing identifies how a load or store computes its effective address.
type Addressing uint8

// Addressing modes.
const (
	// AddrBase is displacement + (RA|0). RA=0 means no base register.
	AddrBase Addressing = iota
	// AddrUpdate is displacement + RA, with RA <- EA afterwards. There is no
	// RA=0 exception in update forms.
	AddrUpdate
	// AddrIndexed is RA + RB.
	AddrIndexed
	// AddrIndexedUpdate is RA + RB, with RA <- EA afterwards.
	AddrIndexedUpdate
)

// Writeback reports whether the addressing mode writes the effective address
// back into RA.
func (a Addressing) Writeback() bool {
	return a == AddrUpdate || a == AddrIndexedUpdate
}

// Indexed reports whether the addressing mode uses RB instead of a
// displacement.
func (a Addressing) Indexed() bool {
	return a == AddrIndexed || a == AddrIndexedUpdate
}

// Extension is the way a narrow loaded value is widened to 64 bits.
type Extension uint8

// Extension kinds.
const (
	ExtNone Extension = iota
	ExtZero
	ExtSign
)

// Access describes the memory behavior of a load or store opcode.
type Access struct {
	Store bool
	Float bool
	// Width is the access size in bytes (1, 2, 4 or 8).
	Width uint8
	Ext   Extension
	Mode  Addressing
	// DS is true for DS-form instructions, whose displacement is a 14-bit
	// field scaled by 4 (ld, ldu, lwa, std, stdu).
	DS bool
}

var accessTable = map[Op]Access{
	OpLBZ:   {Width: 1, Ext: ExtZero, Mode: AddrBase},
	OpLBZU:  {Width: 1, Ext: ExtZero, Mode: AddrUpdate},
	OpLBZX:  {Width: 1, Ext: ExtZero, Mode: AddrIndexed},
	OpLBZUX: {Width: 1, Ext: ExtZero, Mode: AddrIndexedUpdate},

	OpLHZ:   {Width: 2, Ext: ExtZero, Mode: AddrBase},
	OpLHZU:  {Width: 2, Ext: ExtZero, Mode: AddrUpdate},
	OpLHZX:  {Width: 2, Ext: ExtZero, Mode: AddrIndexed},
	OpLHZUX: {Width: 2, Ext: ExtZero, Mode: AddrIndexedUpdate},

	OpLHA:   {Width: 2, Ext: ExtSign, Mode: AddrBase},
	OpLHAU:  {Width: 2, Ext: ExtSign, Mode: AddrUpdate},
	OpLHAX:  {Width: 2, Ext: ExtSign, Mode: AddrIndexed},
	OpLHAUX: {Width: 2, Ext: ExtSign, Mode: AddrIndexedUpdate},

	OpLWZ:   {Width: 4, Ext: ExtZero, Mode: AddrBase},
	OpLWZU:  {Width: 4, Ext: ExtZero, Mode: AddrUpdate},
	OpLWZX:  {Width: 4, Ext: ExtZero, Mode: AddrIndexed},
	OpLWZUX: {Width: 4, Ext: ExtZero, Mode: AddrIndexedUpdate},

	OpLWA:   {Width: 4, Ext: ExtSign, Mode: AddrBase, DS: true},
	OpLWAX:  {Width: 4, Ext: ExtSign, Mode: AddrIndexed},
	OpLWAUX: {Width: 4, Ext: ExtSign, Mode: AddrIndexedUpdate},

	OpLD:   {Width: 8, Mode: AddrBase, DS: true},
	OpLDU:  {Width: 8, Mode: AddrUpdate, DS: true},
	OpLDX:  {Width: 8, Mode: AddrIndexed},
	OpLDUX: {Width: 8, Mode: AddrIndexedUpdate},

	OpLFS:   {Float: true, Width: 4, Mode: AddrBase},
	OpLFSU:  {Float: true, Width: 4, Mode: AddrUpdate},
	OpLFSX:  {Float: true, Width: 4, Mode: AddrIndexed},
	OpLFSUX: {Float: true, Width: 4, Mode: AddrIndexedUpdate},

	OpLFD:   {Float: true, Width: 8, Mode: AddrBase},
	OpLFDU:  {Float: true, Width: 8, Mode: AddrUpdate},
	OpLFDX:  {Float: true, Width: 8, Mode: AddrIndexed},
	OpLFDUX: {Float: true, Width: 8, Mode: AddrIndexedUpdate},

	OpSTB:   {Store: true, Width: 1, Mode: AddrBase},
	OpSTBU:  {Store: true, Width: 1, Mode: AddrUpdate},
	OpSTBX:  {Store: true, Width: 1, Mode: AddrIndexed},
	OpSTBUX: {Store: true, Width: 1, Mode: AddrIndexedUpdate},

	OpSTH:   {Store: true, Width: 2, Mode: AddrBase},
	OpSTHU:  {Store: true, Width: 2, Mode: AddrUpdate},
	OpSTHX:  {Store: true, Width: 2, Mode: AddrIndexed},
	OpSTHUX: {Store: true, Width: 2, Mode: AddrIndexedUpdate},

	OpSTW:   {Store: true, Width: 4, Mode: AddrBase},
	OpSTWU:  {Store: true, Width: 4, Mode: AddrUpdate},
	OpSTWX:  {Store: true, Width: 4, Mode: AddrIndexed},
	OpSTWUX: {Store: true, Width: 4, Mode: AddrIndexedUpdate},

	OpSTD:   {Store: true, Width: 8, Mode: AddrBase, DS: true},
	OpSTDU:  {Store: true, Width: 8, Mode: AddrUpdate, DS: true},
	OpSTDX:  {Store: true, Width: 8, Mode: AddrIndexed},
	OpSTDUX: {Store: true, Width: 8, Mode: AddrIndexedUpdate},

	OpSTFS:   {Store: true, Float: true, Width: 4, Mode: AddrBase},
	OpSTFSU:  {Store: true, Float: true, Width: 4, Mode: AddrUpdate},
	OpSTFSX:  {Store: true, Float: true, Width: 4, Mode: AddrIndexed},
	OpSTFSUX: {Store: true, Float: true, Width: 4, Mode: AddrIndexedUpdate},

	OpSTFD:   {Store: true, Float: true, Width: 8, Mode: AddrBase},
	OpSTFDU:  {Store: true, Float: true, Width: 8, Mode: AddrUpdate},
	OpSTFDX:  {Store: true, Float: true, Width: 8, Mode: AddrIndexed},
	OpSTFDUX: {Store: true, Float: true, Width: 8, Mode: AddrIndexedUpdate},
}

// Access returns the memory access descriptor of an implemented load or
// store opcode. The second result is false for every other opcode, including
// the unimplemented load/store variants.
func (op Op) Access() (Access, bool) {
	a, ok := accessTable[op]
	return a, ok
}

// Displacement returns the immediate displacement of a base or update form
// access, honoring the D/DS distinction.
func (a Access) Displacement(f Fields) int64 {
	if a.DS {
		return f.DS()
	}
	return f.D()
}
