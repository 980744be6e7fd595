package rsp

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/muurk/fwdump/internal/probe"
	"github.com/muurk/fwdump/internal/targets"
)

// maxIncludeDepth bounds xi:include nesting in target descriptions.
const maxIncludeDepth = 4

type memoryMapDocument struct {
	XMLName xml.Name        `xml:"memory-map"`
	Memory  []memoryElement `xml:"memory"`
}

type memoryElement struct {
	Type       string            `xml:"type,attr"`
	Start      string            `xml:"start,attr"`
	Length     string            `xml:"length,attr"`
	Properties []propertyElement `xml:"property"`
}

type propertyElement struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// ParseMemoryMap decodes a GDB memory-map document. Regions keep document
// order and are named after their type ("flash0", "ram0", "ram1", ...).
func ParseMemoryMap(doc []byte) (probe.MemoryMap, error) {
	var mm memoryMapDocument
	if err := xml.Unmarshal(doc, &mm); err != nil {
		return probe.MemoryMap{}, fmt.Errorf("failed to parse memory map: %w", err)
	}

	counts := make(map[probe.RegionType]int)
	regions := make([]probe.Region, 0, len(mm.Memory))
	for _, m := range mm.Memory {
		typ, boot, err := probe.ParseRegionType(m.Type)
		if err != nil {
			return probe.MemoryMap{}, err
		}
		start, err := parseXMLNumber(m.Start, 32)
		if err != nil {
			return probe.MemoryMap{}, fmt.Errorf("memory region start %q: %w", m.Start, err)
		}
		length, err := parseXMLNumber(m.Length, 33)
		if err != nil {
			return probe.MemoryMap{}, fmt.Errorf("memory region length %q: %w", m.Length, err)
		}
		if start+length > 1<<32 {
			return probe.MemoryMap{}, fmt.Errorf("memory region 0x%x+0x%x exceeds the 32-bit address space", start, length)
		}
		if length == 1<<32 {
			length--
		}

		region := probe.Region{
			Name:   fmt.Sprintf("%s%d", typ, counts[typ]),
			Type:   typ,
			Start:  uint32(start),
			Length: uint32(length),
			Boot:   boot,
		}
		counts[typ]++

		for _, p := range m.Properties {
			if p.Name == "blocksize" {
				if bs, err := parseXMLNumber(strings.TrimSpace(p.Value), 32); err == nil {
					region.BlockSize = uint32(bs)
				}
			}
		}
		regions = append(regions, region)
	}
	return probe.NewMemoryMap(regions...), nil
}

func parseXMLNumber(s string, bits int) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 0, bits)
}

// Register is one core register from a target description.
type Register struct {
	Name    string
	Number  int
	BitSize int
}

// RegisterSet is the register layout of a target.
type RegisterSet struct {
	Architecture string
	Registers    []Register

	byName map[string]int
}

// registerAliases lets Cortex-M names resolve against servers that only
// use the numbered form, and the other way round.
var registerAliases = map[string]string{
	"sp":  "r13",
	"lr":  "r14",
	"pc":  "r15",
	"r13": "sp",
	"r14": "lr",
	"r15": "pc",
}

func newRegisterSet(arch string) *RegisterSet {
	return &RegisterSet{Architecture: arch, byName: make(map[string]int)}
}

func (rs *RegisterSet) add(r Register) {
	key := strings.ToLower(r.Name)
	if _, dup := rs.byName[key]; dup {
		return
	}
	rs.byName[key] = len(rs.Registers)
	rs.Registers = append(rs.Registers, r)
}

// Lookup finds a register by name, ignoring case.
func (rs *RegisterSet) Lookup(name string) (Register, bool) {
	key := strings.ToLower(name)
	if i, ok := rs.byName[key]; ok {
		return rs.Registers[i], true
	}
	if alias, ok := registerAliases[key]; ok {
		if i, ok := rs.byName[alias]; ok {
			return rs.Registers[i], true
		}
	}
	return Register{}, false
}

// Offset returns the byte offset and size of register num inside a "g"
// reply. Registers are laid out in register number order.
func (rs *RegisterSet) Offset(num int) (offset, size int, ok bool) {
	sorted := make([]Register, len(rs.Registers))
	copy(sorted, rs.Registers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	for _, r := range sorted {
		if r.Number == num {
			return offset, r.BitSize / 8, true
		}
		offset += r.BitSize / 8
	}
	return 0, 0, false
}

// RegisterSetFromTable builds a register set from a catalog register table.
// Every register is assumed to be 32 bits wide.
func RegisterSetFromTable(table targets.RegisterTable) *RegisterSet {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return table[names[i]] < table[names[j]] })

	rs := newRegisterSet("arm")
	for _, name := range names {
		rs.add(Register{Name: name, Number: table[name], BitSize: 32})
	}
	return rs
}

// IncludeFunc fetches a document referenced by xi:include.
type IncludeFunc func(href string) ([]byte, error)

// ParseTargetDescription decodes a target.xml document. Registers without a
// regnum attribute are numbered one past the previous register, in document
// order across included files.
func ParseTargetDescription(doc []byte, include IncludeFunc) (*RegisterSet, error) {
	rs := newRegisterSet("")
	next := 0
	if err := parseDescription(doc, include, rs, &next, 0); err != nil {
		return nil, err
	}
	if len(rs.Registers) == 0 {
		return nil, fmt.Errorf("target description lists no registers")
	}
	return rs, nil
}

func parseDescription(doc []byte, include IncludeFunc, rs *RegisterSet, next *int, depth int) error {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to parse target description: %w", err)
		}

		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch el.Name.Local {
		case "architecture":
			var arch string
			if err := dec.DecodeElement(&arch, &el); err != nil {
				return fmt.Errorf("failed to parse architecture: %w", err)
			}
			if rs.Architecture == "" {
				rs.Architecture = strings.TrimSpace(arch)
			}

		case "include":
			href := attr(el, "href")
			if href == "" {
				continue
			}
			if include == nil {
				return fmt.Errorf("target description includes %s but includes are not available", href)
			}
			if depth >= maxIncludeDepth {
				return fmt.Errorf("target description includes nested deeper than %d", maxIncludeDepth)
			}
			sub, err := include(href)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", href, err)
			}
			if err := parseDescription(sub, include, rs, next, depth+1); err != nil {
				return fmt.Errorf("%s: %w", href, err)
			}

		case "reg":
			reg, err := parseReg(el, *next)
			if err != nil {
				return err
			}
			*next = reg.Number + 1
			rs.add(reg)
		}
	}
}

func parseReg(el xml.StartElement, next int) (Register, error) {
	reg := Register{Name: attr(el, "name"), Number: next}
	if reg.Name == "" {
		return reg, fmt.Errorf("register without a name")
	}

	bits, err := strconv.Atoi(attr(el, "bitsize"))
	if err != nil || bits <= 0 || bits%8 != 0 {
		return reg, fmt.Errorf("register %s: invalid bitsize %q", reg.Name, attr(el, "bitsize"))
	}
	reg.BitSize = bits

	if s := attr(el, "regnum"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return reg, fmt.Errorf("register %s: invalid regnum %q", reg.Name, s)
		}
		reg.Number = n
	}
	return reg, nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
