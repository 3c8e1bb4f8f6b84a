package repository

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    "github.com/aws/aws-sdk-go-v2/aws"
    "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/credentials"
    "github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
    "github.com/aws/aws-sdk-go-v2/service/dynamodb"
    "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

    pkgconfig "github.com/cloud-wave-best-zizon/billing-desk/pkg/config"
)

var ErrNotFound = errors.New("state key not found")

// StateStore 는 UI 상태를 키-값으로 저장
type StateStore interface {
    Get(ctx context.Context, key string) ([]byte, error)
    Put(ctx context.Context, key string, value []byte) error
}

// FileStore keeps every key in one JSON file.
type FileStore struct {
    path string
    mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
    return &FileStore{path: path}
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
    s.mu.Lock()
    defer s.mu.Unlock()

    values, err := s.load()
    if err != nil {
        return nil, err
    }
    v, ok := values[key]
    if !ok {
        return nil, ErrNotFound
    }
    return []byte(v), nil
}

func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
    s.mu.Lock()
    defer s.mu.Unlock()

    values, err := s.load()
    if err != nil {
        // 손상된 파일은 덮어쓴다
        values = map[string]string{}
    }
    values[key] = string(value)

    data, err := json.MarshalIndent(values, "", "  ")
    if err != nil {
        return fmt.Errorf("failed to marshal state: %w", err)
    }
    if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
        return fmt.Errorf("failed to create state dir: %w", err)
    }
    tmp := s.path + ".tmp"
    if err := os.WriteFile(tmp, data, 0o644); err != nil {
        return fmt.Errorf("failed to write state: %w", err)
    }
    return os.Rename(tmp, s.path)
}

func (s *FileStore) load() (map[string]string, error) {
    data, err := os.ReadFile(s.path)
    if errors.Is(err, os.ErrNotExist) {
        return map[string]string{}, nil
    }
    if err != nil {
        return nil, fmt.Errorf("failed to read state: %w", err)
    }
    values := map[string]string{}
    if err := json.Unmarshal(data, &values); err != nil {
        return nil, fmt.Errorf("failed to parse state file %s: %w", s.path, err)
    }
    return values, nil
}

type stateItem struct {
    StateKey  string    `dynamodbav:"state_key"`
    Value     string    `dynamodbav:"value"`
    UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// DynamoAPI 는 DynamoStore 가 쓰는 *dynamodb.Client 메서드
type DynamoAPI interface {
    GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
    PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore 는 LOCAL_MODE=false 일 때 사용
type DynamoStore struct {
    client    DynamoAPI
    tableName string
}

func NewDynamoDBClient(ctx context.Context, cfg *pkgconfig.Config) (*dynamodb.Client, error) {
    opts := []func(*config.LoadOptions) error{
        config.WithRegion(cfg.AWSRegion),
    }
    if cfg.DynamoEndpoint != "" {
        // DynamoDB Local 은 아무 자격 증명이나 받는다
        opts = append(opts, config.WithCredentialsProvider(
            credentials.NewStaticCredentialsProvider("local", "local", ""),
        ))
    }

    awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
    if err != nil {
        return nil, err
    }

    return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
        if cfg.DynamoEndpoint != "" {
            o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
        }
    }), nil
}

func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
    return &DynamoStore{
        client:    client,
        tableName: tableName,
    }
}

func (r *DynamoStore) Get(ctx context.Context, key string) ([]byte, error) {
    result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
        TableName: aws.String(r.tableName),
        Key: map[string]types.AttributeValue{
            "state_key": &types.AttributeValueMemberS{Value: key},
        },
    })
    if err != nil {
        return nil, fmt.Errorf("failed to get item: %w", err)
    }
    if result.Item == nil {
        return nil, ErrNotFound
    }

    var item stateItem
    if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
        return nil, fmt.Errorf("failed to unmarshal state: %w", err)
    }
    return []byte(item.Value), nil
}

func (r *DynamoStore) Put(ctx context.Context, key string, value []byte) error {
    av, err := attributevalue.MarshalMap(stateItem{
        StateKey:  key,
        Value:     string(value),
        UpdatedAt: time.Now().UTC(),
    })
    if err != nil {
        return fmt.Errorf("failed to marshal state: %w", err)
    }

    _, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
        TableName: aws.String(r.tableName),
        Item:      av,
    })
    if err != nil {
        return fmt.Errorf("failed to put item: %w", err)
    }
    return nil
}
