// Package protoparse reads the protocol text format consumed by the
// simulator (spec.md §6): one line per task, type-tagged, with a
// next-task-id list and type-specific trailing fields. Grounded on the
// teacher's line-oriented config/text parsers and, for the format
// itself, original_source's protocol file reader referenced by
// protocol_builder.cc.
package protoparse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/faridzandi/psim-go/internal/protocol"
)

// Parse reads a protocol text file from r and builds a *protocol.Protocol
// with its dependency graph already resolved. Unrecognized type lines are
// skipped silently, matching spec.md §6.
func Parse(r io.Reader) (*protocol.Protocol, error) {
	p := protocol.New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := parseLine(p, line); err != nil {
			return nil, fmt.Errorf("protoparse: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("protoparse: read: %w", err)
	}

	p.BuildDependencyGraph()
	return p, nil
}

func parseLine(p *protocol.Protocol, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}

	typeTok := fields[0]
	var typ protocol.Type
	switch typeTok {
	case "Forw", "Back":
		typ = protocol.TypeCompute
	case "Comm":
		typ = protocol.TypeFlow
	case "AllR":
		typ = protocol.TypeEmpty
	default:
		// Unrecognized type lines are skipped silently (spec.md §6).
		return nil
	}

	id, err := parseBracketed(fields[1])
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}

	task, err := p.CreateTask(typ, id)
	if err != nil {
		return err
	}

	i := 2
	if i < len(fields) && fields[i] == "next" {
		i++
		for i < len(fields) {
			nextID, err := parseBracketed(fields[i])
			if err != nil {
				break
			}
			task.Base().AddNextTaskID(nextID)
			i++
		}
	}

	for i < len(fields) {
		switch fields[i] {
		case "size":
			if i+1 >= len(fields) {
				return fmt.Errorf("size: missing value")
			}
			size, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return fmt.Errorf("size: %w", err)
			}
			switch t := task.(type) {
			case *protocol.Flow:
				t.Size = size
			case *protocol.ComputeTask:
				t.Size = size
			}
			i += 2
		case "dev":
			if i+1 >= len(fields) {
				return fmt.Errorf("dev: missing value")
			}
			dev, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return fmt.Errorf("dev: %w", err)
			}
			if ct, ok := task.(*protocol.ComputeTask); ok {
				ct.DevID = dev
			}
			i += 2
		case "from":
			if i+1 >= len(fields) {
				return fmt.Errorf("from: missing value")
			}
			src, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return fmt.Errorf("from: %w", err)
			}
			if f, ok := task.(*protocol.Flow); ok {
				f.SrcDevID = src
			}
			i += 2
		case "to":
			if i+1 >= len(fields) {
				return fmt.Errorf("to: missing value")
			}
			dst, err := strconv.Atoi(fields[i+1])
			if err != nil {
				return fmt.Errorf("to: %w", err)
			}
			if f, ok := task.(*protocol.Flow); ok {
				f.DstDevID = dst
			}
			i += 2
		default:
			i++
		}
	}

	return nil
}

// parseBracketed strips the "[ddddd]" zero-padded id wrapper spec.md §6
// describes and parses the integer inside. A bare integer (no brackets)
// is also accepted, since some fixtures in original_source omit them.
func parseBracketed(tok string) (int, error) {
	tok = strings.TrimPrefix(tok, "[")
	tok = strings.TrimSuffix(tok, "]")
	return strconv.Atoi(tok)
}
