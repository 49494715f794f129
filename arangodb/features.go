package arangodb

// Features describes what the store and this backend can do.
type Features struct {
	CanUseChunkedReads           bool `mapstructure:"chunked_reads"`
	CanReturnIDFromInsert        bool `mapstructure:"-"`
	HasBulkInsert                bool `mapstructure:"-"`
	SupportsJoins                bool `mapstructure:"-"`
	HasSelectForUpdate           bool `mapstructure:"-"`
	HasSelectForUpdateNowait     bool `mapstructure:"-"`
	HasSelectForUpdateSkipLocked bool `mapstructure:"-"`
	// InlineParameters renders values into the statement instead of binding them.
	InlineParameters bool `mapstructure:"inline_params"`
	// Autocommit is true when no transaction is active. Locking reads need one.
	Autocommit bool `mapstructure:"-"`
}

// DefaultFeatures returns the capabilities of an ArangoDB server.
func DefaultFeatures() Features {
	return Features{
		CanUseChunkedReads:    true,
		CanReturnIDFromInsert: true,
		HasBulkInsert:         true,
		HasSelectForUpdate:    true,
		Autocommit:            true,
	}
}
