// Package signal detects trading signal events on each closed candle by
// comparing the fresh indicator values against recent history. Detection is
// pure: it reads history, never mutates it, and emits a sorted tag set.
package signal

// Signal tags. These are the values stored on records, matched by
// signal-kind alert rules, and reported over the query interface.
const (
	RSIOversold   = "RSI_OVERSOLD"
	RSIOverbought = "RSI_OVERBOUGHT"

	MACDGoldenCross = "MACD_GOLDEN_CROSS"
	MACDDeathCross  = "MACD_DEATH_CROSS"
	MACDZeroCrossUp = "MACD_ZERO_CROSS_UP"
	MACDZeroCrossDn = "MACD_ZERO_CROSS_DOWN"

	MAGoldenCross        = "MA_GOLDEN_CROSS"
	MADeathCross         = "MA_DEATH_CROSS"
	MABullishArrangement = "MA_BULLISH_ARRANGEMENT"
	MABearishArrangement = "MA_BEARISH_ARRANGEMENT"
	PriceAboveMA50       = "PRICE_ABOVE_MA50"
	PriceBelowMA50       = "PRICE_BELOW_MA50"

	BBSqueeze       = "BB_SQUEEZE"
	BBExpansion     = "BB_EXPANSION"
	BBUpperTouch    = "BB_UPPER_TOUCH"
	BBLowerTouch    = "BB_LOWER_TOUCH"
	BBMiddleCrossUp = "BB_MIDDLE_CROSS_UP"
	BBMiddleCrossDn = "BB_MIDDLE_CROSS_DOWN"

	KDJOversold    = "KDJ_OVERSOLD"
	KDJOverbought  = "KDJ_OVERBOUGHT"
	KDJGoldenCross = "KDJ_GOLDEN_CROSS"
	KDJDeathCross  = "KDJ_DEATH_CROSS"

	StochOversold     = "STOCH_OVERSOLD"
	StochOverbought   = "STOCH_OVERBOUGHT"
	StochBullishCross = "STOCH_BULLISH_CROSS"
	StochBearishCross = "STOCH_BEARISH_CROSS"

	CCIOverbought  = "CCI_OVERBOUGHT"
	CCIOversold    = "CCI_OVERSOLD"
	CCIZeroCrossUp = "CCI_ZERO_CROSS_UP"
	CCIZeroCrossDn = "CCI_ZERO_CROSS_DOWN"

	RSIDivergenceBullish  = "RSI_DIVERGENCE_BULLISH"
	RSIDivergenceBearish  = "RSI_DIVERGENCE_BEARISH"
	MACDDivergenceBullish = "MACD_DIVERGENCE_BULLISH"
	MACDDivergenceBearish = "MACD_DIVERGENCE_BEARISH"

	VolumeSpike = "VOLUME_SPIKE"
	VolumeDry   = "VOLUME_DRY"
)

// Descriptions maps each signal tag to its human-readable description,
// included in query responses and alert trigger payloads.
var Descriptions = map[string]string{
	RSIOversold:   "RSI dropped below 30 (oversold)",
	RSIOverbought: "RSI rose above 70 (overbought)",

	MACDGoldenCross: "MACD line crossed above the signal line (golden cross)",
	MACDDeathCross:  "MACD line crossed below the signal line (death cross)",
	MACDZeroCrossUp: "MACD line crossed above zero",
	MACDZeroCrossDn: "MACD line crossed below zero",

	MAGoldenCross:        "MA5 crossed above MA20 (golden cross)",
	MADeathCross:         "MA5 crossed below MA20 (death cross)",
	MABullishArrangement: "Moving averages in bullish arrangement (MA5 > MA10 > MA20 > MA50)",
	MABearishArrangement: "Moving averages in bearish arrangement (MA5 < MA10 < MA20 < MA50)",
	PriceAboveMA50:       "Price closed above MA50",
	PriceBelowMA50:       "Price closed below MA50",

	BBSqueeze:       "Bollinger Band width contracted below 80% of its recent average",
	BBExpansion:     "Bollinger Band width expanded above 120% of its recent average",
	BBUpperTouch:    "Price touched the upper Bollinger Band",
	BBLowerTouch:    "Price touched the lower Bollinger Band",
	BBMiddleCrossUp: "Price crossed above the Bollinger middle band",
	BBMiddleCrossDn: "Price crossed below the Bollinger middle band",

	KDJOversold:    "KDJ J value dropped below 0 (oversold)",
	KDJOverbought:  "KDJ J value rose above 100 (overbought)",
	KDJGoldenCross: "KDJ K crossed above D in non-overbought territory",
	KDJDeathCross:  "KDJ K crossed below D in non-oversold territory",

	StochOversold:     "Stochastic K and D both below 20 (oversold)",
	StochOverbought:   "Stochastic K and D both above 80 (overbought)",
	StochBullishCross: "Stochastic K crossed above D below the overbought zone",
	StochBearishCross: "Stochastic K crossed below D above the oversold zone",

	CCIOverbought:  "CCI rose above +100 (overbought)",
	CCIOversold:    "CCI dropped below -100 (oversold)",
	CCIZeroCrossUp: "CCI crossed above zero",
	CCIZeroCrossDn: "CCI crossed below zero",

	RSIDivergenceBullish:  "Price made a lower low while RSI made a higher low",
	RSIDivergenceBearish:  "Price made a higher high while RSI made a lower high",
	MACDDivergenceBullish: "Price made a lower low while MACD made a higher low",
	MACDDivergenceBearish: "Price made a higher high while MACD made a lower high",

	VolumeSpike: "Volume spiked above 2x its recent average",
	VolumeDry:   "Volume dried up below 0.5x its recent average",
}

// Known reports whether tag is a recognized signal type.
func Known(tag string) bool {
	_, ok := Descriptions[tag]
	return ok
}
