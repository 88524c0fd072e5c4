package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the front-of-house service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Session  SessionConfig  `yaml:"session"`
	Payment  PaymentConfig  `yaml:"payment"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects and configures the order-history persistence driver.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // memory | file | postgres
	Path     string `yaml:"path"`   // file driver directory
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds the optional kitchen-notification broker settings.
type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SessionConfig carries the waiter identity supplied by the external
// authentication collaborator. The core only reads it.
type SessionConfig struct {
	WaiterID   string `yaml:"waiter_id"`
	WaiterName string `yaml:"waiter_name"`
}

// PaymentConfig tunes the payment workflow.
type PaymentConfig struct {
	SuccessDisplaySeconds int `yaml:"success_display_seconds"`
}

// Load reads configuration from a YAML file. The format is two levels deep,
// so it is parsed with a plain scanner instead of pulling in a YAML library.
func Load(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := &Config{
		Server:  ServerConfig{Port: 3000},
		Storage: StorageConfig{Driver: "file", Path: "data"},
		Payment: PaymentConfig{SuccessDisplaySeconds: 3},
	}
	scanner := bufio.NewScanner(file)

	var currentSection string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Section headers
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			currentSection = strings.TrimSuffix(line, ":")
			continue
		}

		// Key-value pairs
		if strings.Contains(line, ":") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) != 2 {
				continue
			}

			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), `"`)

			if err := config.setValue(currentSection, key, value); err != nil {
				return nil, fmt.Errorf("failed to set config value %s.%s: %w", currentSection, key, err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setValue sets a configuration value based on section and key.
func (c *Config) setValue(section, key, value string) error {
	switch section {
	case "server":
		return c.setServerValue(key, value)
	case "storage":
		return c.setStorageValue(key, value)
	case "rabbitmq":
		return c.setRabbitMQValue(key, value)
	case "session":
		return c.setSessionValue(key, value)
	case "payment":
		return c.setPaymentValue(key, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func (c *Config) setServerValue(key, value string) error {
	switch key {
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.Server.Port = port
	default:
		return fmt.Errorf("unknown server key: %s", key)
	}
	return nil
}

func (c *Config) setStorageValue(key, value string) error {
	switch key {
	case "driver":
		c.Storage.Driver = value
	case "path":
		c.Storage.Path = value
	case "host":
		c.Storage.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.Storage.Port = port
	case "user":
		c.Storage.User = value
	case "password":
		c.Storage.Password = value
	case "database":
		c.Storage.Database = value
	default:
		return fmt.Errorf("unknown storage key: %s", key)
	}
	return nil
}

func (c *Config) setRabbitMQValue(key, value string) error {
	switch key {
	case "enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid enabled value: %w", err)
		}
		c.RabbitMQ.Enabled = enabled
	case "host":
		c.RabbitMQ.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port value: %w", err)
		}
		c.RabbitMQ.Port = port
	case "user":
		c.RabbitMQ.User = value
	case "password":
		c.RabbitMQ.Password = value
	default:
		return fmt.Errorf("unknown rabbitmq key: %s", key)
	}
	return nil
}

func (c *Config) setSessionValue(key, value string) error {
	switch key {
	case "waiter_id":
		c.Session.WaiterID = value
	case "waiter_name":
		c.Session.WaiterName = value
	default:
		return fmt.Errorf("unknown session key: %s", key)
	}
	return nil
}

func (c *Config) setPaymentValue(key, value string) error {
	switch key {
	case "success_display_seconds":
		seconds, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid success_display_seconds value: %w", err)
		}
		c.Payment.SuccessDisplaySeconds = seconds
	default:
		return fmt.Errorf("unknown payment key: %s", key)
	}
	return nil
}

// validate checks driver names and per-driver required fields.
func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the file driver")
		}
	case "postgres":
		if c.Storage.Host == "" || c.Storage.Database == "" {
			return fmt.Errorf("storage.host and storage.database are required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver: %s", c.Storage.Driver)
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq.host is required when rabbitmq is enabled")
	}
	if c.Payment.SuccessDisplaySeconds < 0 {
		return fmt.Errorf("payment.success_display_seconds must not be negative")
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL for the storage driver.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Storage.User, c.Storage.Password, c.Storage.Host, c.Storage.Port, c.Storage.Database)
}

// RabbitMQURL returns an AMQP connection URL.
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}
