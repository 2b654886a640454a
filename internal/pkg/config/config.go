// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config 是服务的全量配置。来源优先级: 环境变量 > yaml 文件 > 默认值。
type Config struct {
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`
	Nacos struct {
		ServerAddrs string `yaml:"server_addrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`
	Zookeeper struct {
		Servers []string `yaml:"servers"`
	} `yaml:"zookeeper"`
	ShopService struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"shop_service"`
}

var (
	current Config
	once    sync.Once
)

// Load 读取配置。路径来自 CONFIG_FILE，文件不存在时仅用环境变量和默认值。
func Load() (*Config, error) {
	var err error
	once.Do(func() {
		current = defaults()
		path := os.Getenv("CONFIG_FILE")
		if path != "" {
			var data []byte
			data, err = os.ReadFile(path)
			if err != nil {
				err = fmt.Errorf("read config file %s: %w", path, err)
				return
			}
			if err = yaml.Unmarshal(data, &current); err != nil {
				err = fmt.Errorf("parse config file %s: %w", path, err)
				return
			}
		}
		applyEnvOverrides(&current)
	})
	if err != nil {
		return nil, err
	}
	return &current, nil
}

// Get 返回已加载的配置，未加载时返回默认值。
func Get() *Config {
	c, _ := Load()
	return c
}

func defaults() Config {
	var c Config
	c.MySQL.DSN = "root:@tcp(localhost:3306)/bazaar?parseTime=true&loc=Local"
	c.Redis.Addr = "localhost:6379"
	c.Kafka.Brokers = []string{"localhost:9092"}
	c.Kafka.Topic = "coupon-events"
	c.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	c.Nacos.ServerAddrs = "localhost:8848"
	c.Nacos.Group = "DEFAULT_GROUP"
	c.Zookeeper.Servers = []string{"localhost:2181"}
	c.ShopService.BaseURL = "http://localhost:8081"
	return c
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		c.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		c.Jaeger.Endpoint = v
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		c.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		c.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		c.Nacos.Group = v
	}
	if v := os.Getenv("ZOOKEEPER_SERVERS"); v != "" {
		c.Zookeeper.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("SHOP_SERVICE_URL"); v != "" {
		c.ShopService.BaseURL = v
	}
}
