package dwarf

// A handful of DWARF attribute and tag numbers this package's own
// session-level queries need to name directly, following pkg/dwarf/unit's
// own dwAt* convention (DWARFv5 section 7.5.3/7.5.4) rather than pulling
// in a full constants package for half a dozen values.
const (
	atName     = 0x03
	atCompDir  = 0x1b
	atStmtList = 0x10
	atLowpc    = 0x11
	atHighpc   = 0x12
	atRanges   = 0x55
	atLocation = 0x02

	tagCompileUnit = 0x11
	tagSubprogram  = 0x2e
)
