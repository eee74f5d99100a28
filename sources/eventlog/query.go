package eventlog

// query selects the unprocessed transfers, the first achievement and artifact
// records above the given floors, and the indexer health metadata.
const query = `
query sophon($rank: Int!, $tier: Int!) {
  arrivals(where: {processedAt: null}, orderBy: arrivalTime, orderDirection: asc) {
    id
    arrivalId
    arrivalTime
    departureTime
    milliSilverMoved
    player {
      id
    }
    fromPlanet {
      id
      speed
    }
  }
  hats(first: 1, where: {hatLevel_gt: $rank}, orderBy: hatLevel, orderDirection: asc) {
    id
    hatLevel
    planet {
      id
    }
    player {
      id
    }
  }
  artifacts(first: 1, where: {planetLevel_gt: $tier}, orderBy: artifactId, orderDirection: asc) {
    id
    rarity
    planetLevel
    discoverer {
      id
    }
    planetDiscoveredOn {
      id
    }
  }
  _meta {
    deployment
    hasIndexingErrors
    block {
      number
      hash
    }
  }
}
`

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type response struct {
	Data   *data          `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type data struct {
	Arrivals  []arrival  `json:"arrivals"`
	Hats      []hat      `json:"hats"`
	Artifacts []artifact `json:"artifacts"`
	Meta      meta       `json:"_meta"`
}

type ref struct {
	ID string `json:"id"`
}

type planet struct {
	ID    string `json:"id"`
	Speed uint64 `json:"speed"`
}

type arrival struct {
	ID               string `json:"id"`
	ArrivalID        uint64 `json:"arrivalId"`
	ArrivalTime      uint64 `json:"arrivalTime"`
	DepartureTime    uint64 `json:"departureTime"`
	MilliSilverMoved uint64 `json:"milliSilverMoved"`
	Player           ref    `json:"player"`
	FromPlanet       planet `json:"fromPlanet"`
}

type hat struct {
	ID       string `json:"id"`
	HatLevel uint64 `json:"hatLevel"`
	Planet   ref    `json:"planet"`
	Player   ref    `json:"player"`
}

type artifact struct {
	ID                 string `json:"id"`
	Rarity             string `json:"rarity"`
	PlanetLevel        uint64 `json:"planetLevel"`
	Discoverer         ref    `json:"discoverer"`
	PlanetDiscoveredOn ref    `json:"planetDiscoveredOn"`
}

type meta struct {
	Deployment        string `json:"deployment"`
	HasIndexingErrors bool   `json:"hasIndexingErrors"`
	Block             struct {
		Number uint64 `json:"number"`
		Hash   string `json:"hash"`
	} `json:"block"`
}
