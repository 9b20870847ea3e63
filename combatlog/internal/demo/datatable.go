package demo

import (
	"errors"
	"fmt"
	"math/bits"
	"slices"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/bitreader"
)

// PropType is the declared type of a send-table property.
type PropType int32

const (
	PropInt PropType = iota
	PropFloat
	PropVector
	PropVectorXY
	PropString
	PropArray
	PropDataTable
	PropInt64
)

func (t PropType) String() string {
	switch t {
	case PropInt:
		return "int"
	case PropFloat:
		return "float"
	case PropVector:
		return "vector"
	case PropVectorXY:
		return "vectorxy"
	case PropString:
		return "string"
	case PropArray:
		return "array"
	case PropDataTable:
		return "datatable"
	case PropInt64:
		return "int64"
	}
	return fmt.Sprintf("proptype(%d)", int32(t))
}

// Send-property flags.
const (
	SPropUnsigned              int32 = 1 << 0
	SPropCoord                 int32 = 1 << 1
	SPropNoScale               int32 = 1 << 2
	SPropRoundDown             int32 = 1 << 3
	SPropRoundUp               int32 = 1 << 4
	SPropNormal                int32 = 1 << 5
	SPropExclude               int32 = 1 << 6
	SPropXYZE                  int32 = 1 << 7
	SPropInsideArray           int32 = 1 << 8
	SPropProxyAlwaysYes        int32 = 1 << 9
	SPropIsAVectorElem         int32 = 1 << 10
	SPropCollapsible           int32 = 1 << 11
	SPropCoordMP               int32 = 1 << 12
	SPropCoordMPLowPrecision   int32 = 1 << 13
	SPropCoordMPIntegral       int32 = 1 << 14
	SPropCellCoord             int32 = 1 << 15
	SPropCellCoordLowPrecision int32 = 1 << 16
	SPropCellCoordIntegral     int32 = 1 << 17
	SPropChangesOften          int32 = 1 << 18
	SPropVarInt                int32 = 1 << 19
)

// changesOftenPriority is the priority bucket that props flagged as changing
// often are promoted into.
const changesOftenPriority = 64

// ErrClassIndex is returned when a server class id is outside the declared class count.
var ErrClassIndex = errors.New("demo: server class id out of range")

// SendProp is a single property declaration in a send table.
type SendProp struct {
	Type        PropType `json:"type"`
	VarName     string   `json:"var_name"`
	Flags       int32    `json:"flags"`
	Priority    int32    `json:"priority"`
	DTName      string   `json:"dt_name,omitempty"`
	NumElements int32    `json:"num_elements,omitempty"`
	LowValue    float32  `json:"low_value,omitempty"`
	HighValue   float32  `json:"high_value,omitempty"`
	NumBits     int32    `json:"num_bits,omitempty"`
}

// HasFlag reports whether all bits of f are set.
func (p *SendProp) HasFlag(f int32) bool {
	return p.Flags&f == f
}

// effectivePriority is the sort key used when flattening. Source-engine
// clients decode props flagged changes-often in the 64 bucket, so their
// declared priority is capped at 64; every other prop sorts by its declared
// priority.
func (p *SendProp) effectivePriority() int32 {
	if p.HasFlag(SPropChangesOften) && p.Priority > changesOftenPriority {
		return changesOftenPriority
	}
	return p.Priority
}

// SendTable is a named list of property declarations.
type SendTable struct {
	Name         string     `json:"name"`
	NeedsDecoder bool       `json:"needs_decoder"`
	Props        []SendProp `json:"props"`
}

// FlatProp is a property in a server class's flattened decode order.
type FlatProp struct {
	Name         string    `json:"name"`
	Prop         SendProp  `json:"prop"`
	ArrayElement *SendProp `json:"array_element,omitempty"`
}

// ServerClass binds a class id to its send table and flattened properties.
type ServerClass struct {
	ID     int        `json:"id"`
	Name   string     `json:"name"`
	DTName string     `json:"dt_name"`
	Props  []FlatProp `json:"props"`
}

// DataTable is the decoded schema of a recording.
type DataTable struct {
	Tables    map[string]*SendTable `json:"-"`
	Classes   []*ServerClass        `json:"classes"`
	ClassBits int                   `json:"class_bits"`
}

// Class returns the server class with the given id.
func (dt *DataTable) Class(id int) (*ServerClass, bool) {
	if id < 0 || id >= len(dt.Classes) || dt.Classes[id] == nil {
		return nil, false
	}
	return dt.Classes[id], true
}

// ParseDataTable decodes a DataTables command payload: a run of send tables
// terminated by one flagged is_end, followed by the server class list.
func ParseDataTable(data []byte) (*DataTable, error) {
	r := bitreader.New(data)
	dt := &DataTable{Tables: make(map[string]*SendTable)}

	for {
		if _, err := r.ReadVarUint32(); err != nil {
			return nil, fmt.Errorf("failed to read send table type: %w", err)
		}
		size, err := r.ReadVarUint32()
		if err != nil {
			return nil, fmt.Errorf("failed to read send table size: %w", err)
		}
		buf, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("failed to read send table: %w", err)
		}
		msg, err := DecodeSendTable(buf)
		if err != nil {
			return nil, err
		}
		if msg.IsEnd {
			break
		}
		if _, ok := dt.Tables[msg.NetTableName]; ok {
			continue
		}
		dt.Tables[msg.NetTableName] = &SendTable{
			Name:         msg.NetTableName,
			NeedsDecoder: msg.NeedsDecoder,
			Props:        msg.Props,
		}
	}

	count, err := r.ReadUint32(16)
	if err != nil {
		return nil, fmt.Errorf("failed to read server class count: %w", err)
	}
	dt.Classes = make([]*ServerClass, count)
	if count == 0 {
		dt.ClassBits = 1
	} else {
		dt.ClassBits = log2(int(count)) + 1
	}

	for range count {
		id, err := r.ReadUint32(16)
		if err != nil {
			return nil, fmt.Errorf("failed to read server class id: %w", err)
		}
		if id >= count {
			return nil, fmt.Errorf("%w: %d >= %d", ErrClassIndex, id, count)
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("failed to read server class name: %w", err)
		}
		dtName, err := r.ReadString()
		if err != nil {
			return nil, fmt.Errorf("failed to read server class table: %w", err)
		}
		dt.Classes[id] = &ServerClass{ID: int(id), Name: name, DTName: dtName}
	}

	for _, class := range dt.Classes {
		if class == nil {
			continue
		}
		table, ok := dt.Tables[class.DTName]
		if !ok {
			continue
		}
		class.Props = dt.flatten(table)
	}
	return dt, nil
}

func log2(n int) int {
	return bits.Len(uint(n)) - 1
}

type excludeKey struct {
	table string
	name  string
}

// flatten produces the decode order of a class's properties: excluded and
// array-element props are dropped, collapsible sub-tables are inlined,
// other sub-tables contribute their props ahead of the enclosing table's,
// and the result is stably sorted by effective priority.
func (dt *DataTable) flatten(table *SendTable) []FlatProp {
	excludes := make(map[excludeKey]struct{})
	dt.gatherExcludes(table, excludes, make(map[string]bool))

	var out []FlatProp
	dt.gatherProps(table, "", excludes, &out, make(map[string]bool))

	slices.SortStableFunc(out, func(a, b FlatProp) int {
		return int(a.Prop.effectivePriority()) - int(b.Prop.effectivePriority())
	})
	return out
}

func (dt *DataTable) gatherExcludes(table *SendTable, excludes map[excludeKey]struct{}, visiting map[string]bool) {
	if visiting[table.Name] {
		return
	}
	visiting[table.Name] = true
	defer delete(visiting, table.Name)

	for i := range table.Props {
		p := &table.Props[i]
		if p.HasFlag(SPropExclude) {
			excludes[excludeKey{table: p.DTName, name: p.VarName}] = struct{}{}
		}
		if p.Type == PropDataTable {
			if sub, ok := dt.Tables[p.DTName]; ok {
				dt.gatherExcludes(sub, excludes, visiting)
			}
		}
	}
}

func (dt *DataTable) gatherProps(table *SendTable, prefix string, excludes map[excludeKey]struct{}, out *[]FlatProp, visiting map[string]bool) {
	if visiting[table.Name] {
		return
	}
	visiting[table.Name] = true
	defer delete(visiting, table.Name)

	var local []FlatProp
	dt.iterateProps(table, prefix, excludes, &local, out, visiting)
	*out = append(*out, local...)
}

func (dt *DataTable) iterateProps(table *SendTable, prefix string, excludes map[excludeKey]struct{}, local, out *[]FlatProp, visiting map[string]bool) {
	for i := range table.Props {
		p := table.Props[i]
		if p.HasFlag(SPropInsideArray) || p.HasFlag(SPropExclude) {
			continue
		}
		if _, ok := excludes[excludeKey{table: table.Name, name: p.VarName}]; ok {
			continue
		}

		if p.Type == PropDataTable {
			sub, ok := dt.Tables[p.DTName]
			if !ok {
				continue
			}
			if p.HasFlag(SPropCollapsible) {
				dt.iterateProps(sub, prefix, excludes, local, out, visiting)
			} else {
				dt.gatherProps(sub, joinName(prefix, p.VarName), excludes, out, visiting)
			}
			continue
		}

		fp := FlatProp{Name: joinName(prefix, p.VarName), Prop: p}
		if p.Type == PropArray && i > 0 {
			elem := table.Props[i-1]
			fp.ArrayElement = &elem
		}
		*local = append(*local, fp)
	}
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
