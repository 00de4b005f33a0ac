package store

import (
	"encoding/json"
	"time"

	"pumpsentinel/pkg/types"
)

// mintRow is the gorm model backing the `mints` table: the live set of
// tracked mints, one row per mint_id.
type mintRow struct {
	MintID       string    `gorm:"column:mint_id;primaryKey"`
	Name         string    `gorm:"column:name"`
	Symbol       string    `gorm:"column:symbol"`
	Owner        string    `gorm:"column:owner"`
	MarketCap    float64   `gorm:"column:market_cap"`
	PriceHistory string    `gorm:"column:price_history"` // JSON array of {key, price}
	PriceUSD     float64   `gorm:"column:price_usd"`
	Liquidity    float64   `gorm:"column:liquidity"`
	OpenPrice    float64   `gorm:"column:open_price"`
	HighPrice    float64   `gorm:"column:high_price"`
	LowPrice     float64   `gorm:"column:low_price"`
	CurrentPrice float64   `gorm:"column:current_price"`
	Age          float64   `gorm:"column:age"`
	TxCounts     string    `gorm:"column:tx_counts"` // JSON {swaps, buys, sells}
	Volume       string    `gorm:"column:volume"`    // JSON {30s, 60s, 120s, 300s}
	Holders      string    `gorm:"column:holders"`   // JSON map[account]Holder
	MintSig      string    `gorm:"column:mint_sig"`
	BondingCurve string    `gorm:"column:bonding_curve"`
	Created      int32     `gorm:"column:created"`
	Timestamp    time.Time `gorm:"column:timestamp;autoCreateTime"`
}

func (mintRow) TableName() string { return "mints" }

// stagnantMintRow is the gorm model backing the `stagnant_mints` table: the
// historical, retired set the Reputation Analyzer reads.
type stagnantMintRow struct {
	MintID          string    `gorm:"column:mint_id;primaryKey"`
	Name            string    `gorm:"column:name"`
	Symbol          string    `gorm:"column:symbol"`
	Owner           string    `gorm:"column:owner"`
	Holders         string    `gorm:"column:holders"`
	PriceHistory    string    `gorm:"column:price_history"`
	TxCounts        string    `gorm:"column:tx_counts"`
	Volume          string    `gorm:"column:volume"`
	PeakPriceChange float64   `gorm:"column:peak_price_change"`
	PeakMarketCap   float64   `gorm:"column:peak_market_cap"`
	FinalMarketCap  float64   `gorm:"column:final_market_cap"`
	FinalOHLC       string    `gorm:"column:final_ohlc"`
	MintSig         string    `gorm:"column:mint_sig"`
	BondingCurve    string    `gorm:"column:bonding_curve"`
	SlotDelay       uint64    `gorm:"column:slot_delay"`
	Timestamp       time.Time `gorm:"column:timestamp;autoCreateTime"`
}

func (stagnantMintRow) TableName() string { return "stagnant_mints" }

func mintRowFromState(s *types.MintState) (*mintRow, error) {
	priceHistory, err := json.Marshal(s.PriceHistory)
	if err != nil {
		return nil, err
	}
	txCounts, err := json.Marshal(s.TxCounts)
	if err != nil {
		return nil, err
	}
	volume, err := json.Marshal(s.Volume)
	if err != nil {
		return nil, err
	}
	holders, err := json.Marshal(s.Holders)
	if err != nil {
		return nil, err
	}

	age := time.Since(s.Created).Seconds()

	openF, _ := s.OpenPrice.Float64()
	highF, _ := s.HighPrice.Float64()
	lowF, _ := s.LowPrice.Float64()
	curF, _ := s.CurrentPrice.Float64()
	mcF, _ := s.MarketCap.Float64()
	usdF, _ := s.PriceUSD.Float64()
	liqF, _ := s.Liquidity.Float64()

	return &mintRow{
		MintID:       s.MintID,
		Name:         s.Name,
		Symbol:       s.Symbol,
		Owner:        s.Creator,
		MarketCap:    mcF,
		PriceHistory: string(priceHistory),
		PriceUSD:     usdF,
		Liquidity:    liqF,
		OpenPrice:    openF,
		HighPrice:    highF,
		LowPrice:     lowF,
		CurrentPrice: curF,
		Age:          age,
		TxCounts:     string(txCounts),
		Volume:       string(volume),
		Holders:      string(holders),
		MintSig:      s.MintSig,
		BondingCurve: s.BondingCurve,
		Created:      int32(s.Created.Unix()),
	}, nil
}

func stagnantRowFromRetired(r *types.RetiredMint) (*stagnantMintRow, error) {
	holders, err := json.Marshal(r.Holders)
	if err != nil {
		return nil, err
	}
	priceHistory, err := json.Marshal(r.PriceHistory)
	if err != nil {
		return nil, err
	}
	txCounts, err := json.Marshal(r.TxCounts)
	if err != nil {
		return nil, err
	}
	volume, err := json.Marshal(r.Volume)
	if err != nil {
		return nil, err
	}
	ohlc, err := json.Marshal(r.FinalOHLC)
	if err != nil {
		return nil, err
	}

	peakChangeF, _ := r.PeakPriceChange.Float64()
	peakMCF, _ := r.PeakMarketCap.Float64()
	finalMCF, _ := r.FinalMarketCap.Float64()

	return &stagnantMintRow{
		MintID:          r.MintID,
		Name:            r.Name,
		Symbol:          r.Symbol,
		Owner:           r.Creator,
		Holders:         string(holders),
		PriceHistory:    string(priceHistory),
		TxCounts:        string(txCounts),
		Volume:          string(volume),
		PeakPriceChange: peakChangeF,
		PeakMarketCap:   peakMCF,
		FinalMarketCap:  finalMCF,
		FinalOHLC:       string(ohlc),
		MintSig:         r.MintSig,
		BondingCurve:    r.BondingCurve,
		SlotDelay:       r.SlotDelay,
	}, nil
}

func retiredFromStagnantRow(row stagnantMintRow) (*types.RetiredMint, error) {
	var holders map[string]*types.Holder
	if err := json.Unmarshal([]byte(row.Holders), &holders); err != nil {
		return nil, err
	}
	var priceHistory []types.HistoryEntry
	if err := json.Unmarshal([]byte(row.PriceHistory), &priceHistory); err != nil {
		return nil, err
	}
	var txCounts types.TxCounts
	if err := json.Unmarshal([]byte(row.TxCounts), &txCounts); err != nil {
		return nil, err
	}
	var volume map[string]types.VolumeBucket
	if err := json.Unmarshal([]byte(row.Volume), &volume); err != nil {
		return nil, err
	}
	var ohlc types.OHLC
	if err := json.Unmarshal([]byte(row.FinalOHLC), &ohlc); err != nil {
		return nil, err
	}

	return &types.RetiredMint{
		MintID:          row.MintID,
		Name:            row.Name,
		Symbol:          row.Symbol,
		Creator:         row.Owner,
		Holders:         holders,
		PriceHistory:    priceHistory,
		TxCounts:        txCounts,
		Volume:          volume,
		PeakPriceChange: mustDecimalFromFloat(row.PeakPriceChange),
		PeakMarketCap:   mustDecimalFromFloat(row.PeakMarketCap),
		FinalMarketCap:  mustDecimalFromFloat(row.FinalMarketCap),
		FinalOHLC:       ohlc,
		MintSig:         row.MintSig,
		BondingCurve:    row.BondingCurve,
		SlotDelay:       row.SlotDelay,
		RetiredAt:       row.Timestamp,
	}, nil
}
