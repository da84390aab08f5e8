package reporting

// Kind identifies a report with its own aggregation routine. Every other
// report type is looked up in the configuration table.
type Kind int

const (
	KindConfigured Kind = iota
	KindFacilityTypeDetailed
	KindKephLevel
	KindConstituency
	KindBedsCotsByCounty
	KindBedsCotsByConstituency
	KindBedsCotsByWard
)

// DefaultReportType is used when the request names no report.
const DefaultReportType = "facility_count_by_county"

var kindNames = map[Kind]string{
	KindFacilityTypeDetailed:   "facility_count_by_facility_type_detailed",
	KindKephLevel:              "facility_keph_level_report",
	KindConstituency:           "facility_constituency_report",
	KindBedsCotsByCounty:       "beds_and_cots_by_county",
	KindBedsCotsByConstituency: "beds_and_cots_by_constituency",
	KindBedsCotsByWard:         "beds_and_cots_by_ward",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = k
	}
	return m
}()

// ParseKind returns the built-in kind for name, or KindConfigured.
func ParseKind(name string) Kind {
	return kindsByName[name]
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "configured"
}

// Dimension is a classification facilities are counted by. Each dimension is
// both a lookup table and the registry field that references it.
type Dimension string

const (
	DimCounty       Dimension = "county"
	DimConstituency Dimension = "constituency"
	DimWard         Dimension = "ward"
	DimFacilityType Dimension = "facility_type"
	DimKephLevel    Dimension = "keph_level"
	DimOwner        Dimension = "owner"
	DimOwnerType    Dimension = "owner_type"
)

// relations lists the columns a dimension's own rows can be narrowed on.
var relations = map[Dimension][]Dimension{
	DimCounty:       nil,
	DimConstituency: {DimCounty},
	DimWard:         {DimConstituency, DimCounty},
	DimFacilityType: nil,
	DimKephLevel:    nil,
	DimOwner:        {DimOwnerType},
	DimOwnerType:    nil,
}

func (d Dimension) Valid() bool {
	_, ok := relations[d]
	return ok
}

// Relations returns the dimensions d's rows carry a reference to.
func (d Dimension) Relations() []Dimension {
	return relations[d]
}

func (d Dimension) hasRelation(other Dimension) bool {
	for _, r := range relations[d] {
		if r == other {
			return true
		}
	}
	return false
}
