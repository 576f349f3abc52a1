package engine

import "time"

type PlayerStatus string

const (
	StatusAvailable PlayerStatus = "Available"
	StatusInAuction PlayerStatus = "InAuction"
	StatusSold      PlayerStatus = "Sold"
	StatusUnsold    PlayerStatus = "Unsold"
	StatusPending   PlayerStatus = "Pending"
	StatusWithdrawn PlayerStatus = "Withdrawn"
)

type TransactionType string

const (
	TxAuction      TransactionType = "Auction"
	TxForceAuction TransactionType = "ForceAuction"
	TxDirectAssign TransactionType = "DirectAssign"
)

type Stage string

const (
	StageIdle       Stage = "Idle"
	StageInitialize Stage = "Initialize"
	StageBidding    Stage = "Bidding"
	StageLastCall   Stage = "LastCall"
	StageSold       Stage = "Sold"
	StagePending    Stage = "Pending"
	StageFinalizing Stage = "Finalizing"
	StageCompleted  Stage = "Completed"
)

type SeatStatus string

const (
	SeatInvited  SeatStatus = "Invited"
	SeatActive   SeatStatus = "Active"
	SeatDisabled SeatStatus = "Disabled"
)

type PolicyMode string

const (
	ModeSingle    PolicyMode = "single"
	ModeAny       PolicyMode = "any"
	ModeMajority  PolicyMode = "majority"
	ModeUnanimous PolicyMode = "unanimous"
)

// Bid is one accepted entry of a player's bid history.
type Bid struct {
	TeamID string    `json:"teamId"`
	Amount int64     `json:"amount"`
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	SeatID string    `json:"seatId,omitempty"`
}

type Player struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Role             string          `json:"role,omitempty"`
	BasePrice        int64           `json:"basePrice"`
	Status           PlayerStatus    `json:"auctionStatus"`
	CurrentBid       int64           `json:"currentBid"`
	CurrentBidTeam   string          `json:"currentBidTeam,omitempty"`
	BidHistory       []Bid           `json:"bidHistory"`
	SoldPrice        int64           `json:"soldPrice,omitempty"`
	SoldTo           string          `json:"soldTo,omitempty"`
	TransactionType  TransactionType `json:"transactionType,omitempty"`
	WithdrawalReason string          `json:"withdrawalReason,omitempty"`
}

func (p *Player) lastBid() (Bid, bool) {
	if len(p.BidHistory) == 0 {
		return Bid{}, false
	}
	return p.BidHistory[len(p.BidHistory)-1], true
}

// clearBids drops every live-auction field, leaving sale fields untouched.
func (p *Player) clearBids() {
	p.CurrentBid = 0
	p.CurrentBidTeam = ""
	p.BidHistory = nil
}

func (p *Player) clearSale() {
	p.SoldPrice = 0
	p.SoldTo = ""
	p.TransactionType = ""
}

// Seat is a named representative of a team. Tokens carry AuthVersion and are
// revoked by bumping it.
type Seat struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Role        string     `json:"role,omitempty"`
	IsVoter     bool       `json:"isVoter"`
	IsLead      bool       `json:"isLead"`
	Status      SeatStatus `json:"status"`
	AuthVersion int        `json:"authVersion"`
}

type SeatPolicy struct {
	Mode               PolicyMode `json:"mode"`
	VotersRequired     int        `json:"votersRequired,omitempty"`
	AllowDynamicQuorum bool       `json:"allowDynamicQuorum"`
	AllowLeadOverride  bool       `json:"allowLeadOverride"`
	AutoResetOnBid     bool       `json:"autoResetOnBid"`
}

type Team struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Budget           int64      `json:"budget"`
	CurrentBalance   int64      `json:"currentBalance"`
	PurchasedPlayers []string   `json:"purchasedPlayers"`
	Seats            []Seat     `json:"seats"`
	SeatPolicy       SeatPolicy `json:"seatPolicy"`
}

func (t *Team) Seat(id string) (*Seat, bool) {
	for i := range t.Seats {
		if t.Seats[i].ID == id {
			return &t.Seats[i], true
		}
	}
	return nil, false
}

// Slab maps an inclusive bid range to an increment. To == 0 means open ended.
type Slab struct {
	From      int64 `json:"from"`
	To        int64 `json:"to"`
	Increment int64 `json:"increment"`
}

type Rules struct {
	FundPerTeam       int64  `json:"fundPerTeam"`
	MaxPlayersPerTeam int    `json:"maxPlayersPerTeam"`
	BasePrice         int64  `json:"basePrice"`
	FixedIncrement    int64  `json:"fixedIncrement,omitempty"`
	Slabs             []Slab `json:"slabs,omitempty"`
	LastCallSeconds   int    `json:"lastCallSeconds,omitempty"`
	BidTimerSeconds   int    `json:"bidTimerSeconds,omitempty"`
}

// Settings hold the operator-facing switches that gate the auction.
type Settings struct {
	RegistrationClosed bool   `json:"registrationClosed"`
	MinPlayers         int    `json:"minPlayers"`
	MinTeams           int    `json:"minTeams"`
	MultiSeatVoting    bool   `json:"multiSeatVoting"`
	AuctionDisabled    bool   `json:"auctionDisabled"`
	QuorumBaseline     int    `json:"quorumBaseline,omitempty"`
	Locale             string `json:"locale,omitempty"`
}

type LastCall struct {
	Active        bool      `json:"active"`
	TeamID        string    `json:"teamId,omitempty"`
	TimerSeconds  int       `json:"timerSeconds,omitempty"`
	ResumeSeconds int       `json:"resumeSeconds,omitempty"`
	StartedAt     time.Time `json:"startedAt,omitempty"`
}

// AuctionState is the mutable live-auction document of a tournament.
type AuctionState struct {
	Stage               Stage          `json:"stage"`
	Started             bool           `json:"started"`
	Paused              bool           `json:"paused"`
	CurrentPlayer       string         `json:"currentPlayer,omitempty"`
	CurrentBid          int64          `json:"currentBid"`
	HighestBidder       string         `json:"highestBidder,omitempty"`
	LastBidTeamID       string         `json:"lastBidTeamId,omitempty"`
	TimerSeconds        int            `json:"timerSeconds,omitempty"`
	LastCall            LastCall       `json:"lastCall"`
	SeatConsensus       ConsensusTable `json:"seatConsensus"`
	ForceAuctionPlayers []string       `json:"forceAuctionPlayers"`
	PendingPlayers      []string       `json:"pendingPlayers"`
	Logs                Log            `json:"logs"`
	CurrentRound        int            `json:"currentRound"`
	// Turn counts players put on the floor. Delayed follow-ups are stamped with it.
	Turn                int            `json:"turn"`
	IsLocked            bool           `json:"isLocked"`
	Summary             *Summary       `json:"summary,omitempty"`
}

// Summary is the snapshot taken when an auction ends.
type Summary struct {
	CompletedAt time.Time        `json:"completedAt"`
	Round       int              `json:"round"`
	Sold        int              `json:"sold"`
	Unsold      int              `json:"unsold"`
	Withdrawn   int              `json:"withdrawn"`
	TotalSpent  int64            `json:"totalSpent"`
	Teams       []LedgerSnapshot `json:"teams"`
}

// Tournament is the aggregate root loaded and saved by tournament code.
type Tournament struct {
	Code     string       `json:"code"`
	Name     string       `json:"name"`
	Rules    Rules        `json:"rules"`
	Settings Settings     `json:"settings"`
	Teams    []Team       `json:"teams"`
	Players  []Player     `json:"players"`
	Auction  AuctionState `json:"auction"`
}
