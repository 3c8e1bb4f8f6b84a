package events

import (
    "context"
    "time"

    "github.com/google/uuid"
    "github.com/shopspring/decimal"

    "github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

// 저장된 청구서 이벤트 (bill.saved)
type BillSavedEvent struct {
    EventID      string          `json:"event_id"`
    EventType    string          `json:"event_type"`
    BillID       string          `json:"bill_id"`
    BillNumber   string          `json:"bill_number"`
    CustomerName string          `json:"customer_name"`
    MobileNumber string          `json:"mobile_number"`
    TotalAmount  decimal.Decimal `json:"total_amount"`
    Items        []BillItem      `json:"items"`
    Updated      bool            `json:"updated"`
    Timestamp    time.Time       `json:"timestamp"`
}

type BillItem struct {
    ProductID int             `json:"product_id"`
    Quantity  int             `json:"quantity"`
    Price     decimal.Decimal `json:"price"`
}

const BillSavedType = "bill.saved"

// NewBillSavedEvent describes a bill the backend just stored. updated is
// true when an existing bill was edited rather than created.
func NewBillSavedEvent(bill domain.HistoricalBill, updated bool, at time.Time) BillSavedEvent {
    event := BillSavedEvent{
        EventID:      uuid.New().String(),
        EventType:    BillSavedType,
        BillID:       bill.ID,
        BillNumber:   bill.BillNumber,
        CustomerName: bill.CustomerName,
        MobileNumber: bill.MobileNumber,
        TotalAmount:  bill.TotalAmount,
        Updated:      updated,
        Timestamp:    at,
    }
    for _, it := range bill.Items {
        event.Items = append(event.Items, BillItem{
            ProductID: it.ProductID,
            Quantity:  it.Quantity,
            Price:     it.Price,
        })
    }
    if event.TotalAmount.IsZero() {
        event.TotalAmount = domain.Summarize([]domain.HistoricalBill{bill}).TotalAmount
    }
    return event
}

// Publisher 는 청구서 이벤트 발행 인터페이스
type Publisher interface {
    PublishBillSaved(ctx context.Context, event BillSavedEvent) error
    Close() error
}
