package observerproto

// Version is the observer protocol version.
const Version = "0.1"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeRound     = "ROUND"
)

// Client -> Server. First message on the observer WS connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Backlog replays every round already settled before live frames start.
	Backlog bool `json:"backlog,omitempty"`
}

// HTTP response for GET /observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	GameID          string      `json:"game_id"`
	Round           int         `json:"round"`
	GameParams      GameParams  `json:"game_params"`
	Players         []string    `json:"players"`
	StoreTypes      []StoreType `json:"store_types"`
}

type GameParams struct {
	MapSize           [2]int  `json:"map_size"`
	Population        int     `json:"population"`
	Seed              int64   `json:"seed"`
	Rounds            int     `json:"n_rounds"`
	StartingCash      float64 `json:"starting_cash"`
	ProfitPerCustomer float64 `json:"profit_per_customer"`
	MaxStoresPerRound int     `json:"max_stores_per_round"`
	AllocationPolicy  string  `json:"allocation_policy"`
}

type StoreType struct {
	Name                   string  `json:"name"`
	CapitalCost            float64 `json:"capital_cost"`
	OperatingCost          float64 `json:"operating_cost"`
	Attractiveness         float64 `json:"attractiveness"`
	AttractivenessConstant float64 `json:"attractiveness_constant"`
}

// Server -> Client. Sent once per settled round.
type RoundMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id"`
	Round           int    `json:"round"`
	Rounds          int    `json:"n_rounds"`
	Final           bool   `json:"final,omitempty"`
	Winner          *int   `json:"winner,omitempty"`
	Digest          string `json:"digest"`

	Players []PlayerState `json:"players"`
}

type PlayerState struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Funds       float64 `json:"funds"`
	Revenue     float64 `json:"revenue"`
	Cost        float64 `json:"cost"`
	Share       float64 `json:"share"`
	TotalStores int     `json:"total_stores"`
	Placed      []Store `json:"placed,omitempty"`

	Outcome string `json:"outcome"`
	Code    string `json:"code,omitempty"`
}

type Store struct {
	Row  int    `json:"row"`
	Col  int    `json:"col"`
	Type string `json:"type"`
}
