package imap

// StoreFlagsOp is the operation a STORE command applies to message flags.
type StoreFlagsOp int

const (
	// StoreFlagsSet replaces the existing flags.
	StoreFlagsSet StoreFlagsOp = iota
	// StoreFlagsAdd adds the listed flags.
	StoreFlagsAdd
	// StoreFlagsDel removes the listed flags.
	StoreFlagsDel
)

// StoreFlags alters message flags.
type StoreFlags struct {
	Op StoreFlagsOp
	// Silent suppresses the untagged FETCH responses echoing the new
	// flags.
	Silent bool
	Flags  []Flag
}
