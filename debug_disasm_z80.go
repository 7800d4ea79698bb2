// debug_disasm_z80.go - Listing view over the instruction decoder

package z80emu

import "fmt"

type DisassembledLine struct {
	Address      uint16
	HexBytes     string
	Mnemonic     string
	Size         int
	IsBranch     bool
	BranchTarget uint16
	Err          error
}

func (l DisassembledLine) String() string {
	if l.Err != nil {
		return fmt.Sprintf("%04X  %-11s  ??", l.Address, l.HexBytes)
	}
	return fmt.Sprintf("%04X  %-11s  %s", l.Address, l.HexBytes, l.Mnemonic)
}

// Disassemble decodes count instructions from addr. Bytes that do not
// decode produce a one-byte line with Err set and the walk continues.
func Disassemble(mem ByteReader, addr uint16, count int) []DisassembledLine {
	var lines []DisassembledLine
	for range count {
		in, err := Decode(mem, addr)
		if err != nil {
			b, _ := mem.Read8(addr)
			lines = append(lines, DisassembledLine{
				Address:  addr,
				HexBytes: fmt.Sprintf("%02X", b),
				Size:     1,
				Err:      err,
			})
			addr++
			continue
		}
		line := DisassembledLine{
			Address:  addr,
			HexBytes: in.HexBytes(),
			Mnemonic: in.String(),
			Size:     in.Length(),
		}
		line.BranchTarget, line.IsBranch = branchTarget(in, addr)
		lines = append(lines, line)
		addr += uint16(in.Length())
	}
	return lines
}

// branchTarget reports the static destination of JP, JR, DJNZ, CALL and
// RST. Indirect jumps and returns have none.
func branchTarget(in *Instruction, addr uint16) (uint16, bool) {
	switch in.Op.Mnemonic {
	case "JP", "CALL":
		if in.Op.Args[last(in)].Kind == OperandImm16 {
			return in.NN, true
		}
	case "JR", "DJNZ":
		return addr + 2 + uint16(int16(int8(in.N))), true
	case "RST":
		return uint16(in.Op.Args[0].Value), true
	}
	return 0, false
}
