package magcorr

// Table holds the compile-time-fitted 4-motor x 3-axis x {a,b,c}
// coefficient table (spec.md §4.7). The fit procedure itself is
// external tooling; these are the literal fitted values recovered from
// the original source (original_source/src/RTPiDrone_I2C.c's magCorr).
var Table = [4][3][3]float64{
	{
		{6.61611606211, -98.902117397, 364.170847984},
		{3.25212997028, -48.7697238694, 179.022788776},
		{-7.37160176497, 111.834418395, -412.447306945},
	},
	{
		{5.50903764712, -82.0980156356, 301.453031647},
		{4.07467179477, -63.7918721595, 249.373180638},
		{3.24067398825, -50.4595212277, 190.858825857},
	},
	{
		{-13.3460228282, 200.930820024, -739.962719004},
		{29.3057756656, -445.783984334, 1662.17393418},
		{19.629876404, -295.721326047, 1091.7205143},
	},
	{
		{-14.6725557049, 217.001761933, -786.753669073},
		{-17.2872454836, 259.179108995, -952.302481154},
		{-21.5664086508, 323.717279288, -1190.54567997},
	},
}
