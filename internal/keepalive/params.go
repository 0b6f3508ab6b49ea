package keepalive

// CascadeOperation is the capability invoked on the cascade repository.
const CascadeOperation = "fetchCascadePage"

// CascadeArity is the arity the cascade repository currently declares for
// CascadeOperation: every CascadeParams slot plus the completion handle.
const CascadeArity = 32

// CascadeParams is the ordered argument list of fetchCascadePage. Fields
// appear in upstream positional order. Only Geohash carries data; every
// other slot is sent with the value that disables it.
type CascadeParams struct {
	Geohash string // 1

	PageCursor any // 2

	OnlineOnly      bool // 3
	PhotoOnly       bool // 4
	FacePhotoOnly   bool // 5
	NotChattedToday bool // 6

	// 7-21: per-field filters, all unset.
	AgeMin             any
	AgeMax             any
	HeightMin          any
	HeightMax          any
	WeightMin          any
	WeightMax          any
	Tribes             any
	LookingFor         any
	RelationshipStatus any
	BodyTypes          any
	Positions          any
	MeetAt             any
	NSFW               any
	Tags               any
	RightNow           any

	FavoritesOnly bool // 22
	PageNumber    int  // 23

	SessionID   any // 24
	Experiments any // 25

	IncludeBoosted  bool // 26
	IncludeTopPicks bool // 27
	Shuffle         bool // 28

	ExploreLocation any // 29

	ForceRefresh bool // 30

	RequestTag any // 31
}

// NewCascadeParams returns the parameters for a keep-alive fetch at the
// given geohash: first page, no filters.
func NewCascadeParams(geohash string) CascadeParams {
	return CascadeParams{Geohash: geohash, PageNumber: 1}
}

// Args returns the positional argument list, excluding the completion
// handle.
func (p CascadeParams) Args() []any {
	return []any{
		p.Geohash,
		p.PageCursor,
		p.OnlineOnly, p.PhotoOnly, p.FacePhotoOnly, p.NotChattedToday,
		p.AgeMin, p.AgeMax, p.HeightMin,
		p.HeightMax, p.WeightMin, p.WeightMax, p.Tribes,
		p.LookingFor, p.RelationshipStatus, p.BodyTypes, p.Positions,
		p.MeetAt, p.NSFW, p.Tags, p.RightNow,
		p.FavoritesOnly,
		p.PageNumber,
		p.SessionID, p.Experiments,
		p.IncludeBoosted, p.IncludeTopPicks, p.Shuffle,
		p.ExploreLocation,
		p.ForceRefresh,
		p.RequestTag,
	}
}
