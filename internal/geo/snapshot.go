// Package geo keeps an offline copy of the courier's city → zone → area
// hierarchy. Snapshots are gzip-compressed JSON files written by
// cmd/geo-snapshot and served when the live geography API fails.
package geo

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/chilirig-checkout/internal/domain/delivery"
	"github.com/xenking/chilirig-checkout/internal/wire"
)

// Snapshot is the full geography tree at a point in time. Build it with
// NewSnapshot or Read; the zero value has no index.
type Snapshot struct {
	GeneratedAt time.Time
	Cities      []CityNode

	zones map[int64][]delivery.Zone
	areas map[int64][]delivery.Area
}

// CityNode is a city with its zones.
type CityNode struct {
	delivery.City
	Zones []ZoneNode
}

// ZoneNode is a zone with its areas.
type ZoneNode struct {
	delivery.Zone
	Areas []delivery.Area
}

// NewSnapshot builds an indexed snapshot.
func NewSnapshot(generatedAt time.Time, cities []CityNode) *Snapshot {
	s := &Snapshot{GeneratedAt: generatedAt.UTC(), Cities: cities}
	s.index()
	return s
}

func (s *Snapshot) index() {
	s.zones = make(map[int64][]delivery.Zone, len(s.Cities))
	s.areas = make(map[int64][]delivery.Area)
	for _, c := range s.Cities {
		zones := make([]delivery.Zone, len(c.Zones))
		for i, z := range c.Zones {
			zones[i] = z.Zone
			s.areas[z.ID] = z.Areas
		}
		s.zones[c.ID] = zones
	}
}

// CityList returns the cities in snapshot order.
func (s *Snapshot) CityList() []delivery.City {
	out := make([]delivery.City, len(s.Cities))
	for i, c := range s.Cities {
		out[i] = c.City
	}
	return out
}

// ZoneList returns the zones of a city and whether the city is known.
func (s *Snapshot) ZoneList(cityID int64) ([]delivery.Zone, bool) {
	z, ok := s.zones[cityID]
	return z, ok
}

// AreaList returns the areas of a zone and whether the zone is known.
func (s *Snapshot) AreaList(zoneID int64) ([]delivery.Area, bool) {
	a, ok := s.areas[zoneID]
	return a, ok
}

// Counts returns the number of cities, zones and areas.
func (s *Snapshot) Counts() (cities, zones, areas int) {
	for _, c := range s.Cities {
		zones += len(c.Zones)
		for _, z := range c.Zones {
			areas += len(z.Areas)
		}
	}
	return len(s.Cities), zones, areas
}

// Encode writes the snapshot as JSON.
func (s *Snapshot) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("generated_at")
		e.Str(wire.FormatTime(s.GeneratedAt))
		e.FieldStart("cities")
		e.Arr(func(e *jx.Encoder) {
			for _, c := range s.Cities {
				e.Obj(func(e *jx.Encoder) {
					e.FieldStart("city")
					wire.EncodeCity(e, c.City)
					e.FieldStart("zones")
					e.Arr(func(e *jx.Encoder) {
						for _, z := range c.Zones {
							encodeZone(e, z)
						}
					})
				})
			}
		})
	})
}

func encodeZone(e *jx.Encoder, z ZoneNode) {
	e.Obj(func(e *jx.Encoder) {
		e.FieldStart("zone")
		wire.EncodeZone(e, z.Zone)
		e.FieldStart("areas")
		e.Arr(func(e *jx.Encoder) {
			for _, a := range z.Areas {
				wire.EncodeArea(e, a)
			}
		})
	})
}

// Decode reads a snapshot written by Encode.
func (s *Snapshot) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "generated_at":
			v, err := d.Str()
			if err != nil {
				return err
			}
			s.GeneratedAt, err = wire.ParseTime(v)
			if err != nil {
				return errors.Wrap(err, "generated_at")
			}
			return nil
		case "cities":
			var err error
			s.Cities, err = wire.DecodeArray(d, decodeCityNode)
			return err
		default:
			return d.Skip()
		}
	})
}

func decodeCityNode(d *jx.Decoder) (CityNode, error) {
	var n CityNode
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "city":
			n.City, err = wire.DecodeCity(d)
		case "zones":
			n.Zones, err = wire.DecodeArray(d, decodeZoneNode)
		default:
			return d.Skip()
		}
		return err
	})
	return n, err
}

func decodeZoneNode(d *jx.Decoder) (ZoneNode, error) {
	var n ZoneNode
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "zone":
			n.Zone, err = wire.DecodeZone(d)
		case "areas":
			n.Areas, err = wire.DecodeArray(d, wire.DecodeArea)
		default:
			return d.Skip()
		}
		return err
	})
	return n, err
}

// Write gzip-compresses the snapshot into w.
func Write(w io.Writer, s *Snapshot) error {
	gz := pgzip.NewWriter(w)
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	s.Encode(e)
	if _, err := gz.Write(e.Bytes()); err != nil {
		_ = gz.Close()
		return errors.Wrap(err, "write snapshot")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip writer")
	}
	return nil
}

// Read decodes a gzip-compressed snapshot from r.
func Read(r io.Reader) (*Snapshot, error) {
	gz, err := pgzip.NewReader(bufio.NewReader(r))
	if err != nil {
		return nil, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	var s Snapshot
	if err := s.Decode(jx.Decode(gz, 64*1024)); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	s.index()
	return &s, nil
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Save atomically replaces the snapshot file at path.
func Save(path string, s *Snapshot) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".geo-*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Write(tmp, s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "rename snapshot")
	}
	return nil
}
