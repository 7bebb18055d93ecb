package lua

import (
	glua "github.com/yuin/gopher-lua"

	"github.com/slok/luabox/internal/model"
)

// allowedOpcodes is the instruction allow list. Anything not in here, including
// OP_NOP and unknown opcodes, makes the program invalid.
var allowedOpcodes = map[int]string{
	glua.OP_MOVE:       "MOVE",
	glua.OP_MOVEN:      "MOVEN",
	glua.OP_LOADK:      "LOADK",
	glua.OP_LOADBOOL:   "LOADBOOL",
	glua.OP_LOADNIL:    "LOADNIL",
	glua.OP_GETUPVAL:   "GETUPVAL",
	glua.OP_GETGLOBAL:  "GETGLOBAL",
	glua.OP_GETTABLE:   "GETTABLE",
	glua.OP_GETTABLEKS: "GETTABLEKS",
	glua.OP_SETGLOBAL:  "SETGLOBAL",
	glua.OP_SETUPVAL:   "SETUPVAL",
	glua.OP_SETTABLE:   "SETTABLE",
	glua.OP_SETTABLEKS: "SETTABLEKS",
	glua.OP_NEWTABLE:   "NEWTABLE",
	glua.OP_SELF:       "SELF",
	glua.OP_ADD:        "ADD",
	glua.OP_SUB:        "SUB",
	glua.OP_MUL:        "MUL",
	glua.OP_DIV:        "DIV",
	glua.OP_MOD:        "MOD",
	glua.OP_POW:        "POW",
	glua.OP_UNM:        "UNM",
	glua.OP_NOT:        "NOT",
	glua.OP_LEN:        "LEN",
	glua.OP_CONCAT:     "CONCAT",
	glua.OP_JMP:        "JMP",
	glua.OP_EQ:         "EQ",
	glua.OP_LT:         "LT",
	glua.OP_LE:         "LE",
	glua.OP_TEST:       "TEST",
	glua.OP_TESTSET:    "TESTSET",
	glua.OP_CALL:       "CALL",
	glua.OP_TAILCALL:   "TAILCALL",
	glua.OP_RETURN:     "RETURN",
	glua.OP_FORLOOP:    "FORLOOP",
	glua.OP_FORPREP:    "FORPREP",
	glua.OP_TFORLOOP:   "TFORLOOP",
	glua.OP_SETLIST:    "SETLIST",
	glua.OP_CLOSE:      "CLOSE",
	glua.OP_CLOSURE:    "CLOSURE",
	glua.OP_VARARG:     "VARARG",
}

// Instruction layout: | op (6) | A (8) | C (9) | B (9) | with Bx using the 18 low bits.
const rkConstantBit = 1 << 8

func opcode(inst uint32) int { return int(inst >> 26) }
func argB(inst uint32) int   { return int(inst & 0x1ff) }
func argC(inst uint32) int   { return int(inst>>9) & 0x1ff }
func argBx(inst uint32) int  { return int(inst & 0x3ffff) }

// program is a compiled chunk that passed the syntax and the instruction validation.
type program struct {
	proto     *glua.FunctionProto
	source    string
	chunkName string
}

// validateInstructions checks every instruction of the prototype and all its nested
// prototypes. Names loaded from the constant pool as globals, table keys or
// methods are checked against the forbidden names.
func validateInstructions(proto *glua.FunctionProto, m *PolicyMatcher) error {
	for pc, inst := range proto.Code {
		op := opcode(inst)
		line := instructionLine(proto, pc)

		if _, ok := allowedOpcodes[op]; !ok {
			return newViolation(model.ViolationKindInstruction, "", line, "instruction with opcode %d is not allowed", op)
		}

		var key glua.LValue
		switch op {
		case glua.OP_GETGLOBAL, glua.OP_SETGLOBAL:
			key = constant(proto, argBx(inst))
		case glua.OP_GETTABLE, glua.OP_GETTABLEKS, glua.OP_SELF:
			key = rkConstant(proto, argC(inst))
		case glua.OP_SETTABLE, glua.OP_SETTABLEKS:
			key = rkConstant(proto, argB(inst))
		}

		name, ok := key.(glua.LString)
		if !ok {
			continue
		}
		if m.ForbiddenName(string(name)) {
			return newViolation(model.ViolationKindInstruction, string(name), line, "%s access to %q is not allowed", allowedOpcodes[op], string(name))
		}
	}

	for _, p := range proto.FunctionPrototypes {
		if err := validateInstructions(p, m); err != nil {
			return err
		}
	}

	return nil
}

func constant(proto *glua.FunctionProto, idx int) glua.LValue {
	if idx < 0 || idx >= len(proto.Constants) {
		return nil
	}
	return proto.Constants[idx]
}

func rkConstant(proto *glua.FunctionProto, rk int) glua.LValue {
	if rk&rkConstantBit == 0 {
		return nil
	}
	return constant(proto, rk&^rkConstantBit)
}

func instructionLine(proto *glua.FunctionProto, pc int) int {
	if pc < len(proto.DbgSourcePositions) {
		return proto.DbgSourcePositions[pc]
	}
	return 0
}
