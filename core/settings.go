package core

import "maps"

// Settings is the backend configuration of a model. It is a value: the
// With* methods and Merge return modified copies and never touch the
// receiver, so a model's settings cannot change under an in-flight call.
type Settings struct {
	MaxCompletionTokens int
	StopSequences       []string
	Temperature         *float64
	TopP                *float64

	// Extra holds backend-specific parameters (e.g. "top_k").
	Extra map[string]any

	// Observers receive the events of every invocation of the model.
	Observers []Observer

	Retry    RetryPolicy
	Throttle ThrottlePolicy
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	c := s
	if s.StopSequences != nil {
		c.StopSequences = append([]string(nil), s.StopSequences...)
	}
	if s.Temperature != nil {
		v := *s.Temperature
		c.Temperature = &v
	}
	if s.TopP != nil {
		v := *s.TopP
		c.TopP = &v
	}
	if s.Extra != nil {
		c.Extra = maps.Clone(s.Extra)
	}
	if s.Observers != nil {
		c.Observers = append([]Observer(nil), s.Observers...)
	}
	return c
}

// Merge returns a copy of s with every field that is set in o taken from o.
// Extra maps are merged key by key; observers are appended.
func (s Settings) Merge(o Settings) Settings {
	c := s.Clone()
	if o.MaxCompletionTokens > 0 {
		c.MaxCompletionTokens = o.MaxCompletionTokens
	}
	if o.StopSequences != nil {
		c.StopSequences = append([]string(nil), o.StopSequences...)
	}
	if o.Temperature != nil {
		v := *o.Temperature
		c.Temperature = &v
	}
	if o.TopP != nil {
		v := *o.TopP
		c.TopP = &v
	}
	if len(o.Extra) > 0 {
		if c.Extra == nil {
			c.Extra = make(map[string]any, len(o.Extra))
		}
		maps.Copy(c.Extra, o.Extra)
	}
	if len(o.Observers) > 0 {
		c.Observers = append(c.Observers, o.Observers...)
	}
	if o.Retry != nil {
		c.Retry = o.Retry
	}
	if o.Throttle != nil {
		c.Throttle = o.Throttle
	}
	return c
}

// WithMaxCompletionTokens returns a copy with the completion token limit set.
func (s Settings) WithMaxCompletionTokens(n int) Settings {
	c := s.Clone()
	c.MaxCompletionTokens = n
	return c
}

// WithStopSequences returns a copy with the stop sequences replaced.
func (s Settings) WithStopSequences(seqs ...string) Settings {
	c := s.Clone()
	c.StopSequences = append([]string(nil), seqs...)
	return c
}

// WithTemperature returns a copy with the sampling temperature set.
func (s Settings) WithTemperature(t float64) Settings {
	c := s.Clone()
	c.Temperature = &t
	return c
}

// WithTopP returns a copy with nucleus sampling set.
func (s Settings) WithTopP(p float64) Settings {
	c := s.Clone()
	c.TopP = &p
	return c
}

// WithExtra returns a copy with one backend-specific parameter set.
func (s Settings) WithExtra(key string, value any) Settings {
	c := s.Clone()
	if c.Extra == nil {
		c.Extra = make(map[string]any, 1)
	}
	c.Extra[key] = value
	return c
}

// WithObservers returns a copy with observers appended.
func (s Settings) WithObservers(observers ...Observer) Settings {
	c := s.Clone()
	c.Observers = append(c.Observers, observers...)
	return c
}

// WithRetry returns a copy using the given retry policy.
func (s Settings) WithRetry(r RetryPolicy) Settings {
	c := s.Clone()
	c.Retry = r
	return c
}

// WithThrottle returns a copy using the given throttle policy.
func (s Settings) WithThrottle(t ThrottlePolicy) Settings {
	c := s.Clone()
	c.Throttle = t
	return c
}

// ForEvent returns the settings published in CallMetadata. Observers and
// policies are left out; only generation parameters that are set appear.
func (s Settings) ForEvent() map[string]any {
	m := make(map[string]any, 4+len(s.Extra))
	for k, v := range s.Extra {
		m[k] = v
	}
	if s.MaxCompletionTokens > 0 {
		m["max_completion_tokens"] = s.MaxCompletionTokens
	}
	if len(s.StopSequences) > 0 {
		m["stop_sequences"] = append([]string(nil), s.StopSequences...)
	}
	if s.Temperature != nil {
		m["temperature"] = *s.Temperature
	}
	if s.TopP != nil {
		m["top_p"] = *s.TopP
	}
	return m
}
