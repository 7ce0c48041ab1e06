package r82xx

import (
	"context"
	"fmt"
	"log/slog"
)

// Bus performs raw addressed transfers to the tuner. Both calls return the
// number of bytes moved; anything short of len(data) is treated as a failure.
// Bytes returned by Read are in wire order, which for this chip family is bit
// reversed relative to register order.
type Bus interface {
	Write(addr uint8, data []byte) (int, error)
	Read(addr uint8, data []byte) (int, error)
}

func inShadow(reg int) bool {
	return reg >= RegShadowStart && reg < RegShadowStart+NumRegs
}

// shadowStore mirrors the bytes of a write that land inside the shadow window.
func (t *Tuner) shadowStore(reg uint8, val []byte) {
	for i, v := range val {
		r := int(reg) + i
		if inShadow(r) {
			t.regs[r-RegShadowStart] = v
		}
	}
}

// write mirrors val into the shadow, applies overrides to the outgoing copy and
// sends it in chunks no longer than the bus allows.
func (t *Tuner) write(reg uint8, val []byte) error {
	t.shadowStore(reg, val)

	chunk := t.cfg.MaxMessageLen - 1
	for pos := 0; pos < len(val); {
		size := len(val) - pos
		if size > chunk {
			size = chunk
		}

		addr := int(reg) + pos
		buf := t.buf[:size+1]
		buf[0] = uint8(addr)
		copy(buf[1:], val[pos:pos+size])

		for k := 0; k < size; k++ {
			r := addr + k
			if !inShadow(r) {
				continue
			}
			mask := t.overrideMask[r-RegShadowStart]
			if mask == 0 {
				continue
			}
			old := buf[1+k]
			buf[1+k] = old&^mask | mask&t.overrideData[r-RegShadowStart]
			t.log.Debug("Register override applied",
				"register", hexByte(r),
				"value", hexByte(int(old)),
				"data", hexByte(int(t.overrideData[r-RegShadowStart])),
				"mask", hexByte(int(mask)),
				"result", hexByte(int(buf[1+k])))
		}

		n, err := t.bus.Write(t.cfg.Address, buf)
		if err != nil || n != len(buf) {
			t.log.Error("Register write failed", "register", hexByte(addr), "length", size, "written", n, "error", err)
			return busError("write", addr, n, len(buf), err)
		}
		t.log.Debug("Register write", "register", hexByte(addr), "data", fmt.Sprintf("% X", buf[1:]))

		pos += size
	}
	return nil
}

func (t *Tuner) writeReg(reg uint8, val uint8) error {
	return t.write(reg, []byte{val})
}

// readCached returns the shadow value of reg.
func (t *Tuner) readCached(reg int) (uint8, bool) {
	if !inShadow(reg) {
		return 0, false
	}
	return t.regs[reg-RegShadowStart], true
}

// writeMasked replaces the bits of reg selected by mask and writes the result.
// Writes are never suppressed, even when the value does not change.
func (t *Tuner) writeMasked(reg uint8, val, mask uint8) error {
	old, ok := t.readCached(int(reg))
	if !ok {
		t.log.Error("Masked write outside shadow window", "register", hexByte(int(reg)))
		return fmt.Errorf("%w: register 0x%02X", ErrNotCached, reg)
	}

	val = old&^mask | val&mask

	level := slog.LevelDebug
	if t.cfg.Overrides.PrintRegisterWrites {
		level = slog.LevelInfo
	}
	t.log.Log(context.Background(), level, "Masked register write",
		"register", hexByte(int(reg)),
		"old", hexByte(int(old)),
		"new", hexByte(int(val)),
		"mask", hexByte(int(mask)))

	return t.write(reg, []byte{val})
}

// read fetches len(val) status bytes starting at reg and undoes the wire bit
// reversal.
func (t *Tuner) read(reg uint8, val []byte) error {
	t.buf[0] = reg
	n, err := t.bus.Write(t.cfg.Address, t.buf[:1])
	if err != nil || n != 1 {
		t.log.Error("Register address write failed", "register", hexByte(int(reg)), "error", err)
		return busError("select", int(reg), n, 1, err)
	}

	n, err = t.bus.Read(t.cfg.Address, val)
	if err != nil || n != len(val) {
		t.log.Error("Register read failed", "register", hexByte(int(reg)), "length", len(val), "read", n, "error", err)
		return busError("read", int(reg), n, len(val), err)
	}

	for i := range val {
		val[i] = bitReverse(val[i])
	}
	return nil
}

var nibbleReverse = [16]uint8{
	0x0, 0x8, 0x4, 0xc, 0x2, 0xa, 0x6, 0xe,
	0x1, 0x9, 0x5, 0xd, 0x3, 0xb, 0x7, 0xf,
}

func bitReverse(b uint8) uint8 {
	return nibbleReverse[b&0x0f]<<4 | nibbleReverse[b>>4]
}

// ReadCachedRegister returns the last value written to address, or false if
// address is outside the shadow window.
func (t *Tuner) ReadCachedRegister(address uint8) (uint8, bool) {
	return t.readCached(int(address))
}

// WriteRegister performs a masked write of a single shadowed register.
func (t *Tuner) WriteRegister(address, value, mask uint8) error {
	if err := t.writeMasked(address, value, mask); err != nil {
		return fmt.Errorf("write register 0x%02X: %w", address, err)
	}
	return nil
}

// SetRegisterOverride forces the bits in mask to value on every future write
// of address. With clear set, the bits in mask are released instead. The
// register is rewritten immediately so the change reaches the chip.
func (t *Tuner) SetRegisterOverride(address, value, mask uint8, clear bool) error {
	if !inShadow(int(address)) {
		t.log.Error("Override outside shadow window", "register", hexByte(int(address)))
		return fmt.Errorf("%w: register 0x%02X", ErrOverrideAddress, address)
	}

	idx := int(address) - RegShadowStart
	oldMask, oldData := t.overrideMask[idx], t.overrideData[idx]

	if clear {
		t.overrideMask[idx] &^= mask
		t.overrideData[idx] &^= mask
	} else {
		t.overrideMask[idx] |= mask
		t.overrideData[idx] = t.overrideData[idx]&^mask | mask&value
	}

	t.log.Info("Register override updated",
		"register", hexByte(int(address)),
		"clear", clear,
		"old_mask", hexByte(int(oldMask)),
		"old_data", hexByte(int(oldData)),
		"mask", hexByte(int(t.overrideMask[idx])),
		"data", hexByte(int(t.overrideData[idx])))

	if err := t.writeMasked(address, 0, 0); err != nil {
		return fmt.Errorf("apply override to register 0x%02X: %w", address, err)
	}
	return nil
}

// RegisterOverride reports the forced mask and data for address.
func (t *Tuner) RegisterOverride(address uint8) (mask, data uint8, ok bool) {
	if !inShadow(int(address)) {
		return 0, 0, false
	}
	idx := int(address) - RegShadowStart
	return t.overrideMask[idx], t.overrideData[idx], true
}

func (t *Tuner) clearOverrides() {
	t.overrideMask = [NumRegs]uint8{}
	t.overrideData = [NumRegs]uint8{}
}

func hexByte(v int) string {
	return fmt.Sprintf("0x%02X", v)
}
