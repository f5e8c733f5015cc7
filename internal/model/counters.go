package model

// Count tallies safe and unsafe occurrences of one construct category.
type Count struct {
	Safe   uint64 `json:"safe" yaml:"safe"`
	Unsafe uint64 `json:"unsafe" yaml:"unsafe"`
}

// Record bumps either the safe or the unsafe side.
func (c *Count) Record(unsafe bool) {
	if unsafe {
		c.Unsafe++
		return
	}

	c.Safe++
}

// Add returns the component-wise sum.
func (c Count) Add(other Count) Count {
	return Count{
		Safe:   c.Safe + other.Safe,
		Unsafe: c.Unsafe + other.Unsafe,
	}
}

// CounterBlock is the raw output of scanning one file.
type CounterBlock struct {
	Functions  Count `json:"functions" yaml:"functions"`
	Exprs      Count `json:"exprs" yaml:"exprs"`
	ItemImpls  Count `json:"item_impls" yaml:"item_impls"`
	ItemTraits Count `json:"item_traits" yaml:"item_traits"`
	Methods    Count `json:"methods" yaml:"methods"`
}

// Add returns the component-wise sum of two blocks.
func (b CounterBlock) Add(other CounterBlock) CounterBlock {
	return CounterBlock{
		Functions:  b.Functions.Add(other.Functions),
		Exprs:      b.Exprs.Add(other.Exprs),
		ItemImpls:  b.ItemImpls.Add(other.ItemImpls),
		ItemTraits: b.ItemTraits.Add(other.ItemTraits),
		Methods:    b.Methods.Add(other.Methods),
	}
}

// HasUnsafe reports whether any category saw an unsafe occurrence.
func (b CounterBlock) HasUnsafe() bool {
	return b.Functions.Unsafe > 0 ||
		b.Exprs.Unsafe > 0 ||
		b.ItemImpls.Unsafe > 0 ||
		b.ItemTraits.Unsafe > 0 ||
		b.Methods.Unsafe > 0
}

// UsageCount pairs the unsafe occurrences in compiled code with those in all scanned code.
// Used never exceeds Total.
type UsageCount struct {
	Used  uint64 `json:"used" yaml:"used"`
	Total uint64 `json:"total" yaml:"total"`
}

// Add returns the component-wise sum.
func (u UsageCount) Add(other UsageCount) UsageCount {
	return UsageCount{Used: u.Used + other.Used, Total: u.Total + other.Total}
}

// UnsafeCounters holds the five (used, total) pairs reported per package.
type UnsafeCounters struct {
	Functions   UsageCount `json:"functions" yaml:"functions"`
	Expressions UsageCount `json:"expressions" yaml:"expressions"`
	Impls       UsageCount `json:"impls" yaml:"impls"`
	Traits      UsageCount `json:"traits" yaml:"traits"`
	Methods     UsageCount `json:"methods" yaml:"methods"`
}

// NewUnsafeCounters derives the reported pairs from the used and unused blocks.
func NewUnsafeCounters(used, unused CounterBlock) UnsafeCounters {
	pair := func(u, n Count) UsageCount {
		return UsageCount{Used: u.Unsafe, Total: u.Unsafe + n.Unsafe}
	}

	return UnsafeCounters{
		Functions:   pair(used.Functions, unused.Functions),
		Expressions: pair(used.Exprs, unused.Exprs),
		Impls:       pair(used.ItemImpls, unused.ItemImpls),
		Traits:      pair(used.ItemTraits, unused.ItemTraits),
		Methods:     pair(used.Methods, unused.Methods),
	}
}

// Add returns the component-wise sum.
func (c UnsafeCounters) Add(other UnsafeCounters) UnsafeCounters {
	return UnsafeCounters{
		Functions:   c.Functions.Add(other.Functions),
		Expressions: c.Expressions.Add(other.Expressions),
		Impls:       c.Impls.Add(other.Impls),
		Traits:      c.Traits.Add(other.Traits),
		Methods:     c.Methods.Add(other.Methods),
	}
}

// AnyUsed reports whether compiled code contains unsafe usage.
func (c UnsafeCounters) AnyUsed() bool {
	return c.Functions.Used > 0 ||
		c.Expressions.Used > 0 ||
		c.Impls.Used > 0 ||
		c.Traits.Used > 0 ||
		c.Methods.Used > 0
}

// IsZero reports whether every pair is zero.
func (c UnsafeCounters) IsZero() bool {
	return c == UnsafeCounters{}
}

// Pairs returns the counters in display order: functions, expressions, impls, traits, methods.
func (c UnsafeCounters) Pairs() []UsageCount {
	return []UsageCount{c.Functions, c.Expressions, c.Impls, c.Traits, c.Methods}
}
