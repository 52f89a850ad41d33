package runner

// Config is the parsed run configuration. Option values are stored under
// their destination keys and are read back by plugins with GetValue.
type Config struct {
	command []string
	values  map[string]string
}

func NewConfig(command []string) *Config {
	return &Config{
		command: command,
		values:  make(map[string]string),
	}
}

// Command returns a copy of the test command.
func (c *Config) Command() []string {
	return append([]string(nil), c.command...)
}

// SetValue stores an option value. Empty values are treated as unset.
func (c *Config) SetValue(key, value string) {
	if value == "" {
		delete(c.values, key)
		return
	}
	c.values[key] = value
}

// GetValue returns the value stored under key, or "" when unset.
func (c *Config) GetValue(key string) string {
	return c.values[key]
}
