package z80emu

const (
	aluAdd = iota
	aluAdc
	aluSub
	aluSbc
	aluAnd
	aluXor
	aluOr
	aluCp
)

const (
	rotRLC = iota
	rotRRC
	rotRL
	rotRR
	rotSLA
	rotSRA
	_ // SLL, undocumented and not decoded
	rotSRL
)

func parity8(value byte) bool {
	value ^= value >> 4
	value ^= value >> 2
	value ^= value >> 1
	return value&1 == 0
}

// szxy is S, Z and the two undocumented bits for an 8-bit result.
func szxy(value byte) Flags {
	f := Flags(value) & (FlagS | FlagX | FlagY)
	if value == 0 {
		f |= FlagZ
	}
	return f
}

// szxyp adds even parity to szxy.
func szxyp(value byte) Flags {
	f := szxy(value)
	if parity8(value) {
		f |= FlagPV
	}
	return f
}

func (c *CPU) carryIn() byte {
	if c.F.Carry() {
		return 1
	}
	return 0
}

func (c *CPU) performALU(op int, value byte) {
	switch op {
	case aluAdd:
		c.addA(value, 0)
	case aluAdc:
		c.addA(value, c.carryIn())
	case aluSub:
		c.subA(value, 0, true)
	case aluSbc:
		c.subA(value, c.carryIn(), true)
	case aluAnd:
		c.A &= value
		c.F = szxyp(c.A) | FlagH
	case aluXor:
		c.A ^= value
		c.F = szxyp(c.A)
	case aluOr:
		c.A |= value
		c.F = szxyp(c.A)
	case aluCp:
		c.subA(value, 0, false)
	}
}

func (c *CPU) addA(value byte, carry byte) {
	a := c.A
	sum := uint16(a) + uint16(value) + uint16(carry)
	res := byte(sum)

	c.A = res
	c.F = szxy(res)
	if ((a&0x0F)+(value&0x0F)+carry)&0x10 != 0 {
		c.F |= FlagH
	}
	if (^(a^value))&(a^res)&0x80 != 0 {
		c.F |= FlagPV
	}
	if sum > 0xFF {
		c.F |= FlagC
	}
}

// subA computes A - value - carry. CP passes store=false and takes the
// undocumented bits from the operand rather than the result.
func (c *CPU) subA(value byte, carry byte, store bool) {
	a := c.A
	diff := int(a) - int(value) - int(carry)
	res := byte(diff)

	c.F = szxy(res) | FlagN
	if !store {
		c.F = c.F&^(FlagX|FlagY) | Flags(value)&(FlagX|FlagY)
	}
	if int(a&0x0F)-int(value&0x0F)-int(carry) < 0 {
		c.F |= FlagH
	}
	if (a^value)&(a^res)&0x80 != 0 {
		c.F |= FlagPV
	}
	if diff < 0 {
		c.F |= FlagC
	}
	if store {
		c.A = res
	}
}

func (c *CPU) inc8(value byte) byte {
	res := value + 1
	c.F = c.F&FlagC | szxy(res)
	if value&0x0F == 0x0F {
		c.F |= FlagH
	}
	if value == 0x7F {
		c.F |= FlagPV
	}
	return res
}

func (c *CPU) dec8(value byte) byte {
	res := value - 1
	c.F = c.F&FlagC | szxy(res) | FlagN
	if value&0x0F == 0 {
		c.F |= FlagH
	}
	if value == 0x80 {
		c.F |= FlagPV
	}
	return res
}

// add16 is ADD HL/IX/IY,rr: S, Z and PV are kept.
func (c *CPU) add16(a, b uint16) uint16 {
	sum := uint32(a) + uint32(b)
	res := uint16(sum)
	c.F &= FlagS | FlagZ | FlagPV
	if (a&0x0FFF)+(b&0x0FFF) > 0x0FFF {
		c.F |= FlagH
	}
	if sum > 0xFFFF {
		c.F |= FlagC
	}
	c.F |= Flags(res>>8) & (FlagX | FlagY)
	return res
}

func (c *CPU) adc16(a, b uint16) uint16 {
	carry := uint32(c.carryIn())
	sum := uint32(a) + uint32(b) + carry
	res := uint16(sum)

	c.F = Flags(res>>8) & (FlagS | FlagX | FlagY)
	if res == 0 {
		c.F |= FlagZ
	}
	if uint32(a&0x0FFF)+uint32(b&0x0FFF)+carry > 0x0FFF {
		c.F |= FlagH
	}
	if (^(a^b))&(a^res)&0x8000 != 0 {
		c.F |= FlagPV
	}
	if sum > 0xFFFF {
		c.F |= FlagC
	}
	return res
}

func (c *CPU) sbc16(a, b uint16) uint16 {
	carry := int32(c.carryIn())
	diff := int32(a) - int32(b) - carry
	res := uint16(diff)

	c.F = Flags(res>>8)&(FlagS|FlagX|FlagY) | FlagN
	if res == 0 {
		c.F |= FlagZ
	}
	if int32(a&0x0FFF)-int32(b&0x0FFF)-carry < 0 {
		c.F |= FlagH
	}
	if (a^b)&(a^res)&0x8000 != 0 {
		c.F |= FlagPV
	}
	if diff < 0 {
		c.F |= FlagC
	}
	return res
}

// daa picks the correction from H, C and the digits of A alone; N only
// decides whether it is added or subtracted.
func (c *CPU) daa() {
	a := c.A
	adj := byte(0)
	if c.F.HalfCarry() || a&0x0F > 0x09 {
		adj |= 0x06
	}
	if c.F.Carry() || a > 0x99 {
		adj |= 0x60
	}

	res := a + adj
	if c.F.Subtract() {
		res = a - adj
	}

	// adj never has bit 4 set, so the nibble carry or borrow shows up as
	// a change in bit 4.
	f := szxyp(res) | c.F&FlagN | Flags(a^res)&FlagH
	if adj&0x60 != 0 {
		f |= FlagC
	}
	c.A = res
	c.F = f
}

func (c *CPU) neg() {
	a := c.A
	res := 0 - a
	c.A = res
	c.F = szxy(res) | FlagN
	if a&0x0F != 0 {
		c.F |= FlagH
	}
	if a == 0x80 {
		c.F |= FlagPV
	}
	if a != 0 {
		c.F |= FlagC
	}
}

// rotateA covers RLCA, RRCA, RLA and RRA, which leave S, Z and PV alone.
func (c *CPU) rotateA(kind int) {
	res, carry := c.shift(kind, c.A)
	c.A = res
	c.F = c.F&(FlagS|FlagZ|FlagPV) | Flags(res)&(FlagX|FlagY)
	if carry {
		c.F |= FlagC
	}
}

// shift performs one of the CB-page rotates and shifts on value.
func (c *CPU) shift(kind int, value byte) (byte, bool) {
	switch kind {
	case rotRLC:
		return value<<1 | value>>7, value&0x80 != 0
	case rotRRC:
		return value>>1 | value<<7, value&0x01 != 0
	case rotRL:
		return value<<1 | c.carryIn(), value&0x80 != 0
	case rotRR:
		return value>>1 | c.carryIn()<<7, value&0x01 != 0
	case rotSLA:
		return value << 1, value&0x80 != 0
	case rotSRA:
		return value>>1 | value&0x80, value&0x01 != 0
	case rotSRL:
		return value >> 1, value&0x01 != 0
	}
	return value, false
}

// bitTest sets flags for BIT. xy supplies the undocumented bits.
func (c *CPU) bitTest(bit byte, value byte, xy byte) {
	f := c.F&FlagC | FlagH | Flags(xy)&(FlagX|FlagY)
	if value&(1<<bit) == 0 {
		f |= FlagZ | FlagPV
	} else if bit == 7 {
		f |= FlagS
	}
	c.F = f
}
