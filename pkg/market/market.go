// Package market implements the rigged-scale vendor scenario.
package market

import (
	"fmt"
	"math"
)

const (
	UnitPrice       = 50.0 // yuan per jin
	ActualWeight    = 0.8  // jin
	InitialWeight   = 1.2  // jin shown by the rigged scale
	DrainDecrement  = 0.2  // jin removed by draining the water bag
	OpeningLine     = "来来来！新鲜的海鱼！市场最低价！50块钱一斤，包你满意！"
	DeflectionLine  = "哎，你到底买不买啊？别挡着我做生意！"
	ScaleCheckWin   = "摊主心虚生气了，因为你要验秤，他拒绝卖给你。你成功避开了“鬼秤”欺诈！使用随身物品验秤是防范鬼秤的有效方法。"
	payFeedbackTmpl = "你付了 %d 元，但这条鱼实际只值 %d 元。这台秤是“八两秤”（调快了），而且袋子里装了很重的水。"
)

// Mood is the vendor's advisory disposition.
type Mood string

const (
	MoodNeutral    Mood = "neutral"
	MoodSuspicious Mood = "suspicious"
	MoodAngry      Mood = "angry"
	MoodHappy      Mood = "happy"
	MoodAnnoyed    Mood = "annoyed"
)

// Valid reports whether m is one of the known moods.
func (m Mood) Valid() bool {
	switch m {
	case MoodNeutral, MoodSuspicious, MoodAngry, MoodHappy, MoodAnnoyed:
		return true
	}
	return false
}

// State is the stall as the player sees it.
// DisplayedWeight never drops below ActualWeight.
type State struct {
	VendorMood      Mood    `json:"vendor_mood"`
	VendorText      string  `json:"vendor_text"`
	DisplayedWeight float64 `json:"displayed_weight"`
	ActualWeight    float64 `json:"actual_weight"`
	HasWaterBag     bool    `json:"has_water_bag"`
	UnitPrice       float64 `json:"unit_price"`
}

// NewState returns the stall at the start of the scenario.
func NewState() *State {
	return &State{
		VendorMood:      MoodNeutral,
		VendorText:      OpeningLine,
		DisplayedWeight: InitialWeight,
		ActualWeight:    ActualWeight,
		HasWaterBag:     true,
		UnitPrice:       UnitPrice,
	}
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Charge is what the vendor asks for, rounded to whole yuan.
func (s *State) Charge() int {
	return int(math.Round(s.DisplayedWeight * s.UnitPrice))
}

// TrueValue is what the fish is actually worth, rounded to whole yuan.
func (s *State) TrueValue() int {
	return int(math.Round(s.ActualWeight * s.UnitPrice))
}

// Drain removes the water bag. It returns false and changes nothing when the
// bag is already gone.
func (s *State) Drain() bool {
	if !s.HasWaterBag {
		return false
	}
	s.HasWaterBag = false
	s.DisplayedWeight = math.Max(s.DisplayedWeight-DrainDecrement, s.ActualWeight)
	return true
}

// Apply records a vendor reaction.
func (s *State) Apply(r Reaction) {
	s.VendorMood = r.NewMood
	s.VendorText = r.Text
}

// PayFeedback explains the overcharge after the player pays.
func (s *State) PayFeedback() string {
	return fmt.Sprintf(payFeedbackTmpl, s.Charge(), s.TrueValue())
}
