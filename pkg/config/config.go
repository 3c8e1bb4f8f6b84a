package config

import (
    "time"

    "github.com/joho/godotenv"
    "github.com/kelseyhightower/envconfig"

    "github.com/cloud-wave-best-zizon/billing-desk/pkg/tls"
)

type Config struct {
    Port              string        `envconfig:"PORT" default:"8080"`
    LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
    BackendURL        string        `envconfig:"BACKEND_URL" default:"http://localhost:5000"`
    BackendTimeout    time.Duration `envconfig:"BACKEND_TIMEOUT" default:"15s"`
    KeepAliveInterval time.Duration `envconfig:"KEEP_ALIVE_INTERVAL" default:"5m"`
    AllowedOrigins    []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`

    // 로컬 모드에서는 UI 상태를 파일에, 아니면 DynamoDB에 저장
    LocalMode      bool   `envconfig:"LOCAL_MODE" default:"true"`
    StateFile      string `envconfig:"STATE_FILE" default:"./data/workspace.json"`
    AWSRegion      string `envconfig:"AWS_REGION" default:"ap-south-1"`
    StateTableName string `envconfig:"STATE_TABLE_NAME" default:"billing-desk-state"`
    DynamoEndpoint string `envconfig:"DYNAMO_ENDPOINT"`

    KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
    KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"bill-events"`

    BillPrefix string `envconfig:"BILL_PREFIX" default:"B"`

    Receipt ReceiptConfig
    TLS     tls.TLSConfig
}

type ReceiptConfig struct {
    ShopName      string        `envconfig:"SHOP_NAME" default:"ராஜா ஸ்னாக்ஸ்"`
    Title         string        `envconfig:"RECEIPT_TITLE" default:"கேஷ் பில்"`
    Phone         string        `envconfig:"SHOP_PHONE" default:"9842263860"`
    Footer        string        `envconfig:"RECEIPT_FOOTER" default:"என்றும் உங்களுடன் ராஜா ஸ்னாக்ஸ் !!! மீண்டும் வருக..."`
    ItemsPerPage  int           `envconfig:"RECEIPT_ITEMS_PER_PAGE" default:"8"`
    SpoolDir      string        `envconfig:"PRINT_SPOOL_DIR" default:"./data/spool"`
    PrintCommand  string        `envconfig:"PRINT_COMMAND"`
    FallbackDelay time.Duration `envconfig:"PRINT_FALLBACK_DELAY" default:"1s"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
    _ = godotenv.Load()

    var cfg Config
    if err := envconfig.Process("", &cfg); err != nil {
        return nil, err
    }
    return &cfg, nil
}
