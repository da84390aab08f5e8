package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

type memFacility struct {
	id      uuid.UUID
	name    string
	code    int
	ward    uuid.UUID
	typ     uuid.UUID
	keph    *uuid.UUID
	owner   uuid.UUID
	beds    *int
	cots    *int
	deleted bool
}

type memUpgrade struct {
	id           uuid.UUID
	facility     uuid.UUID
	typ          uuid.UUID
	keph         *uuid.UUID
	previousType string
	previousKeph *string
	reason       string
	isUpgrade    bool
	created      time.Time
}

// memStore is a Store over plain slices used to check the engine against
// brute-force counts.
type memStore struct {
	dims       map[Dimension][]Instance
	facilities []*memFacility
	upgrades   []*memUpgrade
	nextCode   int
}

func newMemStore() *memStore {
	return &memStore{dims: make(map[Dimension][]Instance), nextCode: 100000}
}

func (m *memStore) add(d Dimension, name string, refs map[Dimension]uuid.UUID) uuid.UUID {
	if refs == nil {
		refs = map[Dimension]uuid.UUID{}
	}
	inst := Instance{ID: uuid.New(), Name: name, Refs: refs}
	m.dims[d] = append(m.dims[d], inst)
	return inst.ID
}

func (m *memStore) instance(d Dimension, id uuid.UUID) (Instance, bool) {
	for _, inst := range m.dims[d] {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}

func (m *memStore) name(d Dimension, id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	inst, ok := m.instance(d, *id)
	if !ok {
		return nil
	}
	return &inst.Name
}

func (m *memStore) facility(f *memFacility) *memFacility {
	f.id = uuid.New()
	f.code = m.nextCode
	m.nextCode++
	if f.name == "" {
		f.name = fmt.Sprintf("Facility %d", f.code)
	}
	m.facilities = append(m.facilities, f)
	return f
}

// refs resolves every dimension a facility references, like the SQL joins.
func (m *memStore) refs(f *memFacility) map[Dimension]uuid.UUID {
	ward, _ := m.instance(DimWard, f.ward)
	owner, _ := m.instance(DimOwner, f.owner)
	out := map[Dimension]uuid.UUID{
		DimWard:         f.ward,
		DimConstituency: ward.Refs[DimConstituency],
		DimCounty:       ward.Refs[DimCounty],
		DimFacilityType: f.typ,
		DimOwner:        f.owner,
		DimOwnerType:    owner.Refs[DimOwnerType],
	}
	if f.keph != nil {
		out[DimKephLevel] = *f.keph
	}
	return out
}

func (m *memStore) live(q Query) []*memFacility {
	var out []*memFacility
	for _, f := range m.facilities {
		if !f.deleted && q.Matches(m.refs(f)) {
			out = append(out, f)
		}
	}
	return out
}

func (m *memStore) Instances(_ context.Context, d Dimension, where Query) ([]Instance, error) {
	for _, p := range where.Predicates() {
		if !d.hasRelation(p.Dimension) {
			return nil, fmt.Errorf("%w: %s rows cannot be filtered by %s", ErrBadFilter, d, p.Dimension)
		}
	}
	var out []Instance
	for _, inst := range m.dims[d] {
		if where.Matches(inst.Refs) {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) Count(_ context.Context, q Query) (int, error) {
	return len(m.live(q)), nil
}

func (m *memStore) CountBy(_ context.Context, q Query, by ...Dimension) (map[GroupKey]int, error) {
	out := make(map[GroupKey]int)
	for _, f := range m.live(q) {
		refs := m.refs(f)
		var key GroupKey
		for i, d := range by {
			key[i] = refs[d]
		}
		out[key]++
	}
	return out, nil
}

func (m *memStore) SumBedsCots(_ context.Context, q Query, d Dimension) ([]BedsCots, error) {
	groups := make(map[uuid.UUID]*BedsCots)
	for _, f := range m.live(q) {
		id := m.refs(f)[d]
		b, ok := groups[id]
		if !ok {
			inst, _ := m.instance(d, id)
			b = &BedsCots{ID: id, Name: inst.Name}
			groups[id] = b
		}
		if f.beds != nil {
			b.Beds += *f.beds
		}
		if f.cots != nil {
			b.Cots += *f.cots
		}
	}
	var out []BedsCots
	for _, b := range groups {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) Changes(_ context.Context, cf ChangeFilter) ([]Change, error) {
	var out []Change
	for _, u := range m.upgrades {
		var f *memFacility
		for _, cand := range m.facilities {
			if cand.id == u.facility {
				f = cand
			}
		}
		if f == nil || f.deleted {
			continue
		}
		if cf.IsUpgrade != nil && u.isUpgrade != *cf.IsUpgrade {
			continue
		}
		recent := true
		for _, since := range cf.Since {
			if u.created.Before(since) {
				recent = false
			}
		}
		county := m.refs(f)[DimCounty]
		if !recent || (cf.County != nil && county != *cf.County) {
			continue
		}
		typ, _ := m.instance(DimFacilityType, u.typ)
		out = append(out, Change{
			ID:                   u.id,
			FacilityID:           f.id,
			FacilityName:         f.name,
			FacilityCode:         f.code,
			CountyID:             county,
			FacilityType:         typ.Name,
			KephLevel:            m.name(DimKephLevel, u.keph),
			PreviousFacilityType: u.previousType,
			PreviousKephLevel:    u.previousKeph,
			Reason:               u.reason,
			IsUpgrade:            u.isUpgrade,
			Created:              u.created,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out, nil
}
