package tracker

import (
	"fmt"

	"github.com/ngforge/nss/bitstream"
	"github.com/ngforge/nss/nsserr"
)

const patternTerminator = 0xFF

// readPattern decodes one PATN chunk into a Pattern whose row list is
// right-padded to mod.PatternLen.
func readPattern(r *bitstream.Reader, mod *Module) (*Pattern, error) {
	hdr, err := r.Read(4)
	if err != nil || string(hdr) != "PATN" {
		return nil, fmt.Errorf("%w: missing PATN chunk", nsserr.ErrBadMagic)
	}
	if _, err := r.U4(); err != nil { // chunk length, ignored (row count bounded by patternLen instead)
		return nil, fmt.Errorf("%w: truncated PATN header", nsserr.ErrInvalidModule)
	}
	r.U1() // subsong, ignored

	channel, err := r.U1()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated PATN header", nsserr.ErrInvalidModule)
	}
	index, err := r.U2()
	if err != nil {
		return nil, fmt.Errorf("%w: truncated PATN header", nsserr.ErrInvalidModule)
	}
	if _, err := r.Ustr(); err != nil { // pattern name, ignored
		return nil, fmt.Errorf("%w: %v", nsserr.ErrInvalidModule, err)
	}

	fxCols := mod.FxColumns[channel]
	rows := make([]Row, 0, mod.PatternLen)

	for len(rows) < mod.PatternLen {
		desc, err := r.U1()
		if err != nil {
			break // chunk ended; remainder is padded empty below
		}
		if desc == patternTerminator {
			break
		}
		if desc&0x80 != 0 {
			n := 2 + int(desc&0x7F)
			for i := 0; i < n && len(rows) < mod.PatternLen; i++ {
				rows = append(rows, emptyRow(fxCols))
			}
			continue
		}

		row, err := decodeRow(r, desc, fxCols)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	for len(rows) < mod.PatternLen {
		rows = append(rows, emptyRow(fxCols))
	}

	return &Pattern{Channel: int(channel), Index: int(index), FxCols: fxCols, Rows: rows}, nil
}

func emptyRow(fxCols int) Row {
	fx := make([]FxCmd, fxCols)
	for i := range fx {
		fx[i] = FxCmd{Code: -1, Value: -1}
	}
	return Row{Note: -1, Instrument: -1, Volume: -1, Fx: fx}
}

// decodeRow expands a non-terminator, non-skip descriptor byte into one
// populated Row, reading note/instrument/volume and up to 16 effect mask
// bits as the §4.5 bitfield layout describes.
func decodeRow(r *bitstream.Reader, desc byte, fxCols int) (Row, error) {
	hasNote := desc&0x01 != 0
	hasIns := desc&0x02 != 0
	hasVol := desc&0x04 != 0
	fxMaskLow := (desc >> 3) & 0x03

	var fxMaskMid, fxMaskHigh byte
	if desc&0x20 != 0 {
		b, err := r.U1()
		if err != nil {
			return Row{}, fmt.Errorf("%w: truncated fx mask", nsserr.ErrInvalidModule)
		}
		fxMaskMid = b
	}
	if desc&0x40 != 0 {
		b, err := r.U1()
		if err != nil {
			return Row{}, fmt.Errorf("%w: truncated fx mask", nsserr.ErrInvalidModule)
		}
		fxMaskHigh = b
	}
	fxMask := uint16(fxMaskLow) | uint16(fxMaskMid) | uint16(fxMaskHigh)<<8

	row := Row{Note: -1, Instrument: -1, Volume: -1}

	if hasNote {
		b, err := r.U1()
		if err != nil {
			return Row{}, fmt.Errorf("%w: truncated row note", nsserr.ErrInvalidModule)
		}
		row.Note = int(b)
	}
	if hasIns {
		b, err := r.U1()
		if err != nil {
			return Row{}, fmt.Errorf("%w: truncated row instrument", nsserr.ErrInvalidModule)
		}
		row.Instrument = int(b)
	}
	if hasVol {
		b, err := r.U1()
		if err != nil {
			return Row{}, fmt.Errorf("%w: truncated row volume", nsserr.ErrInvalidModule)
		}
		row.Volume = int(b)
	}

	slots := make([]FxCmd, 8)
	for i := range slots {
		slots[i] = FxCmd{Code: -1, Value: -1}
	}
	for slot := 0; slot < 8; slot++ {
		codeBit := uint16(1) << uint(2*slot)
		valBit := uint16(1) << uint(2*slot+1)
		if fxMask&codeBit != 0 {
			b, err := r.U1()
			if err != nil {
				return Row{}, fmt.Errorf("%w: truncated fx code", nsserr.ErrInvalidModule)
			}
			slots[slot].Code = int(b)
		}
		if fxMask&valBit != 0 {
			b, err := r.U1()
			if err != nil {
				return Row{}, fmt.Errorf("%w: truncated fx value", nsserr.ErrInvalidModule)
			}
			slots[slot].Value = int(b)
		}
	}

	if fxCols > len(slots) {
		fxCols = len(slots)
	}
	row.Fx = slots[:fxCols]
	return row, nil
}
