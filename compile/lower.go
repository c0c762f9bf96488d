package compile

import (
	"fmt"

	"github.com/ngforge/nss/nsserr"
	"github.com/ngforge/nss/opcode"
	"github.com/ngforge/nss/tracker"
)

// ChannelName returns the short display name nsstool.py uses for
// compact-mode pattern-block ids ("F1".."F4", "S1".."S3", "A1".."A6", "B").
func ChannelName(channel int) string {
	return []string{
		"F1", "F2", "F3", "F4",
		"S1", "S2", "S3",
		"A1", "A2", "A3", "A4", "A5", "A6",
		"B",
	}[channel]
}

type rowKey struct {
	channel int
	pattern int
	row     int
}

// Lower walks the module's playback graph (raw_nss) and produces the
// unoptimised opcode stream for the given channel selection. channels
// lists the channel indices to include in the output, in CLI order;
// capture re-injects flow-fx opcodes (tempo/speed/groove) observed on
// filtered-out channels into the first selected channel so global timing
// opcodes are never silently dropped.
func Lower(mod *tracker.Module, channels []int, compact, capture bool, diag *nsserr.Diagnostics) ([]opcode.Record, error) {
	factories := NewFactories()
	selected := make(map[int]bool, len(channels))
	for _, c := range channels {
		selected[c] = true
	}

	cache := map[rowKey]RowActions{}
	rowToActions := func(pat *tracker.Pattern, pos, order int) RowActions {
		key := rowKey{channel: pat.Channel, pattern: pat.Index, row: pos}
		if a, ok := cache[key]; ok {
			return a
		}
		a := convertRow(pat.Rows[pos], pat.Channel, order, pos, factories, diag)
		cache[key] = a
		return a
	}

	var nss []opcode.Record
	var blocks []opcode.Record
	seenOrders := map[int]bool{}
	seenPatterns := map[string]bool{}

	order := 0
	for order < len(mod.Orders) && !seenOrders[order] {
		seenOrders[order] = true

		orderPatterns := make([]*tracker.Pattern, tracker.NumChannels)
		for ch := 0; ch < tracker.NumChannels; ch++ {
			patID := mod.Orders[order][ch]
			pat, ok := mod.Patterns[tracker.PatternKey{Channel: ch, PatternID: patID}]
			if !ok {
				return nil, fmt.Errorf("%w: order %d channel %d references missing pattern %d", nsserr.ErrInvalidModule, order, ch, patID)
			}
			orderPatterns[ch] = pat
		}

		patternLen := len(orderPatterns[0].Rows)
		for _, p := range orderPatterns {
			if len(p.Rows) != patternLen {
				return nil, fmt.Errorf("%w: inconsistent pattern lengths across channels in order %d", nsserr.ErrInvalidModule, order)
			}
		}

		jmpLabel := opcode.NewLabel(fmt.Sprintf("jmp_%x", order))
		nss = append(nss, jmpLabel)

		jmpToOrder := opcode.JmpNone
		var patternOpcodes []opcode.Record

		for idx := 0; idx < patternLen; idx++ {
			allActions := make([]RowActions, tracker.NumChannels)
			for ch := 0; ch < tracker.NumChannels; ch++ {
				allActions[ch] = rowToActions(orderPatterns[ch], idx, order)
			}

			if capture && len(channels) > 0 {
				var captured []opcode.Record
				for ch, a := range allActions {
					if !selected[ch] {
						captured = append(captured, a.FlowFx...)
					}
				}
				allActions[channels[0]].FlowFx = append(allActions[channels[0]].FlowFx, captured...)
			}

			for _, ch := range channels {
				patternOpcodes = append(patternOpcodes, allActions[ch].Flatten()...)
			}
			patternOpcodes = append(patternOpcodes, opcode.WaitN(1))

			jmpToOrder = opcode.JmpNone
			for _, a := range allActions {
				if a.JmpToOrder != opcode.JmpNone {
					jmpToOrder = a.JmpToOrder
					break
				}
			}
			if jmpToOrder != opcode.JmpNone {
				break
			}
		}

		if jmpToOrder >= 0 && jmpToOrder != opcode.JmpNextOrder {
			order = jmpToOrder
		} else {
			order++
		}

		if compact && len(channels) > 0 {
			patternIndex := orderPatterns[channels[0]].Index
			waitRows := countWaitRows(patternOpcodes)
			patternID := fmt.Sprintf("%s_%02x_%02x", ChannelName(channels[0]), patternIndex, waitRows)

			if !seenPatterns[patternID] {
				block := []opcode.Record{opcode.NewLabel(patternID)}
				block = append(block, patternOpcodes...)
				block = append(block, opcode.NssRetOp())
				blocks = append(blocks, block...)
				seenPatterns[patternID] = true
			}
			nss = append(nss, opcode.CallTo(patternID))
		} else {
			nss = append(nss, patternOpcodes...)
		}
	}

	if seenOrders[order] {
		nss = append(nss, opcode.JmpTo(fmt.Sprintf("jmp_%x", order)))
	} else {
		nss = append(nss, opcode.NssEndOp())
	}
	nss = append(nss, blocks...)

	return nss, nil
}

func countWaitRows(ops []opcode.Record) int {
	total := 0
	for _, op := range ops {
		if op.Code == opcode.WaitNOp && len(op.Operands) == 1 {
			total += int(op.Operands[0])
		}
	}
	return total
}
