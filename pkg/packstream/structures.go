package packstream

import "fmt"

// The as* helpers convert a decoded structure's raw field list into the
// typed value it represents, checking both field count and each field's
// Go type. Field order and count per tag come from spec.md §3's structure
// tables.

func fieldErr(tag byte, want, got int) error {
	return fmt.Errorf("%w: tag 0x%02X expects %d fields, got %d", ErrUnknownStructureTag, tag, want, got)
}

func asInt64(v any) (int64, bool) {
	n, ok := v.(int64)
	return n, ok
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asNode(f []any) (*Node, error) {
	if len(f) != 4 {
		return nil, fieldErr(TagNode, 4, len(f))
	}
	id, ok := asInt64(f[0])
	if !ok {
		return nil, fmt.Errorf("%w: Node.id must be an integer", ErrUnknownStructureTag)
	}
	rawLabels, ok := f[1].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: Node.labels must be a list", ErrUnknownStructureTag)
	}
	labels := make([]string, len(rawLabels))
	for i, l := range rawLabels {
		s, ok := asString(l)
		if !ok {
			return nil, fmt.Errorf("%w: Node.labels entries must be strings", ErrUnknownStructureTag)
		}
		labels[i] = s
	}
	props, ok := f[2].(*Dictionary)
	if !ok {
		return nil, fmt.Errorf("%w: Node.properties must be a dict", ErrUnknownStructureTag)
	}
	elementID, ok := asString(f[3])
	if !ok {
		return nil, fmt.Errorf("%w: Node.element_id must be a string", ErrUnknownStructureTag)
	}
	return &Node{ID: id, Labels: labels, Properties: props, ElementID: elementID}, nil
}

func asRelationship(f []any) (*Relationship, error) {
	if len(f) != 8 {
		return nil, fieldErr(TagRelationship, 8, len(f))
	}
	id, ok1 := asInt64(f[0])
	startID, ok2 := asInt64(f[1])
	endID, ok3 := asInt64(f[2])
	typ, ok4 := asString(f[3])
	props, ok5 := f[4].(*Dictionary)
	elementID, ok6 := asString(f[5])
	startElementID, ok7 := asString(f[6])
	endElementID, ok8 := asString(f[7])
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8) {
		return nil, fmt.Errorf("%w: Relationship field type mismatch", ErrUnknownStructureTag)
	}
	return &Relationship{
		ID: id, StartID: startID, EndID: endID, Type: typ, Properties: props,
		ElementID: elementID, StartElementID: startElementID, EndElementID: endElementID,
	}, nil
}

func asUnboundRelationship(f []any) (*UnboundRelationship, error) {
	if len(f) != 4 {
		return nil, fieldErr(TagUnboundRelationship, 4, len(f))
	}
	id, ok1 := asInt64(f[0])
	typ, ok2 := asString(f[1])
	props, ok3 := f[2].(*Dictionary)
	elementID, ok4 := asString(f[3])
	if !(ok1 && ok2 && ok3 && ok4) {
		return nil, fmt.Errorf("%w: UnboundRelationship field type mismatch", ErrUnknownStructureTag)
	}
	return &UnboundRelationship{ID: id, Type: typ, Properties: props, ElementID: elementID}, nil
}

func asPath(f []any) (*Path, error) {
	if len(f) != 3 {
		return nil, fieldErr(TagPath, 3, len(f))
	}
	rawNodes, ok := f[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: Path.nodes must be a list", ErrUnknownStructureTag)
	}
	nodes := make([]*Node, len(rawNodes))
	for i, n := range rawNodes {
		node, ok := n.(*Node)
		if !ok {
			return nil, fmt.Errorf("%w: Path.nodes entries must be Node", ErrUnknownStructureTag)
		}
		nodes[i] = node
	}
	rawRels, ok := f[1].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: Path.rels must be a list", ErrUnknownStructureTag)
	}
	rels := make([]*UnboundRelationship, len(rawRels))
	for i, r := range rawRels {
		rel, ok := r.(*UnboundRelationship)
		if !ok {
			return nil, fmt.Errorf("%w: Path.rels entries must be UnboundRelationship", ErrUnknownStructureTag)
		}
		rels[i] = rel
	}
	rawIndices, ok := f[2].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: Path.indices must be a list", ErrUnknownStructureTag)
	}
	indices := make([]int64, len(rawIndices))
	for i, idx := range rawIndices {
		n, ok := asInt64(idx)
		if !ok {
			return nil, fmt.Errorf("%w: Path.indices entries must be integers", ErrUnknownStructureTag)
		}
		indices[i] = n
	}
	return &Path{Nodes: nodes, Rels: rels, Indices: indices}, nil
}

func asDate(f []any) (Date, error) {
	if len(f) != 1 {
		return Date{}, fieldErr(TagDate, 1, len(f))
	}
	days, ok := asInt64(f[0])
	if !ok {
		return Date{}, fmt.Errorf("%w: Date.days must be an integer", ErrUnknownStructureTag)
	}
	return Date{Days: days}, nil
}

func asTime(f []any) (Time, error) {
	if len(f) != 2 {
		return Time{}, fieldErr(TagTime, 2, len(f))
	}
	nanos, ok1 := asInt64(f[0])
	offset, ok2 := asInt64(f[1])
	if !(ok1 && ok2) {
		return Time{}, fmt.Errorf("%w: Time field type mismatch", ErrUnknownStructureTag)
	}
	return Time{Nanos: nanos, OffsetSeconds: int32(offset)}, nil
}

func asLocalTime(f []any) (LocalTime, error) {
	if len(f) != 1 {
		return LocalTime{}, fieldErr(TagLocalTime, 1, len(f))
	}
	nanos, ok := asInt64(f[0])
	if !ok {
		return LocalTime{}, fmt.Errorf("%w: LocalTime.nanoseconds must be an integer", ErrUnknownStructureTag)
	}
	return LocalTime{Nanos: nanos}, nil
}

func asDateTime(f []any) (DateTime, error) {
	if len(f) != 3 {
		return DateTime{}, fieldErr(TagDateTimeOffset, 3, len(f))
	}
	seconds, ok1 := asInt64(f[0])
	nanos, ok2 := asInt64(f[1])
	offset, ok3 := asInt64(f[2])
	if !(ok1 && ok2 && ok3) {
		return DateTime{}, fmt.Errorf("%w: DateTime field type mismatch", ErrUnknownStructureTag)
	}
	return DateTime{Seconds: seconds, Nanos: int32(nanos), OffsetSeconds: int32(offset)}, nil
}

func asDateTimeZoneID(f []any) (DateTimeZoneID, error) {
	if len(f) != 3 {
		return DateTimeZoneID{}, fieldErr(TagDateTimeZoneID, 3, len(f))
	}
	seconds, ok1 := asInt64(f[0])
	nanos, ok2 := asInt64(f[1])
	zoneID, ok3 := asString(f[2])
	if !(ok1 && ok2 && ok3) {
		return DateTimeZoneID{}, fmt.Errorf("%w: DateTimeZoneID field type mismatch", ErrUnknownStructureTag)
	}
	return DateTimeZoneID{Seconds: seconds, Nanos: int32(nanos), ZoneID: zoneID}, nil
}

func asLocalDateTime(f []any) (LocalDateTime, error) {
	if len(f) != 2 {
		return LocalDateTime{}, fieldErr(TagLocalDateTime, 2, len(f))
	}
	seconds, ok1 := asInt64(f[0])
	nanos, ok2 := asInt64(f[1])
	if !(ok1 && ok2) {
		return LocalDateTime{}, fmt.Errorf("%w: LocalDateTime field type mismatch", ErrUnknownStructureTag)
	}
	return LocalDateTime{Seconds: seconds, Nanos: int32(nanos)}, nil
}

func asDuration(f []any) (Duration, error) {
	if len(f) != 4 {
		return Duration{}, fieldErr(TagDuration, 4, len(f))
	}
	months, ok1 := asInt64(f[0])
	days, ok2 := asInt64(f[1])
	seconds, ok3 := asInt64(f[2])
	nanos, ok4 := asInt64(f[3])
	if !(ok1 && ok2 && ok3 && ok4) {
		return Duration{}, fmt.Errorf("%w: Duration field type mismatch", ErrUnknownStructureTag)
	}
	return Duration{Months: months, Days: days, Seconds: seconds, Nanos: int32(nanos)}, nil
}

func asPoint2D(f []any) (Point2D, error) {
	if len(f) != 3 {
		return Point2D{}, fieldErr(TagPoint2D, 3, len(f))
	}
	srid, ok1 := asInt64(f[0])
	x, ok2 := f[1].(float64)
	y, ok3 := f[2].(float64)
	if !(ok1 && ok2 && ok3) {
		return Point2D{}, fmt.Errorf("%w: Point2D field type mismatch", ErrUnknownStructureTag)
	}
	return Point2D{SRID: uint32(srid), X: x, Y: y}, nil
}

func asPoint3D(f []any) (Point3D, error) {
	if len(f) != 4 {
		return Point3D{}, fieldErr(TagPoint3D, 4, len(f))
	}
	srid, ok1 := asInt64(f[0])
	x, ok2 := f[1].(float64)
	y, ok3 := f[2].(float64)
	z, ok4 := f[3].(float64)
	if !(ok1 && ok2 && ok3 && ok4) {
		return Point3D{}, fmt.Errorf("%w: Point3D field type mismatch", ErrUnknownStructureTag)
	}
	return Point3D{SRID: uint32(srid), X: x, Y: y, Z: z}, nil
}
