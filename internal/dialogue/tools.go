package dialogue

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"pizzacall/internal/domain"
)

const (
	SaveOrderTool = "save_order"
	EndCallTool   = "end_call"
)

// OrderTools declares the functions the engine may call during a call.
func OrderTools() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        SaveOrderTool,
			Description: "Enregistre la commande finale du client après sa confirmation explicite.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"items": {
						Type:        genai.TypeArray,
						Description: "Liste des articles commandés.",
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"name":     {Type: genai.TypeString, Description: "Nom de l'article, tel qu'il apparaît au menu."},
								"quantity": {Type: genai.TypeNumber, Description: "Quantité commandée."},
								"price":    {Type: genai.TypeNumber, Description: "Prix unitaire en euros."},
							},
							Required: []string{"name", "quantity", "price"},
						},
					},
					"totalPrice": {Type: genai.TypeNumber, Description: "Prix total de la commande en euros."},
				},
				Required: []string{"items", "totalPrice"},
			},
		},
		{
			Name:        EndCallTool,
			Description: "Termine l'appel une fois que tu as dit au revoir au client.",
		},
	}
}

type saveOrderArgs struct {
	Items []struct {
		Name     string   `json:"name"`
		Quantity *float64 `json:"quantity"`
		Price    *float64 `json:"price"`
	} `json:"items"`
	TotalPrice *float64 `json:"totalPrice"`
}

// decodeSaveOrder turns raw function-call arguments into a commit request.
// It only checks shape; business validation is the dispatcher's job, so an
// empty item list decodes fine.
func decodeSaveOrder(args map[string]any) (domain.OrderCommitRequest, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return domain.OrderCommitRequest{}, fmt.Errorf("encoding arguments: %w", err)
	}

	var parsed saveOrderArgs
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.OrderCommitRequest{}, fmt.Errorf("decoding arguments: %w", err)
	}

	if _, ok := args["items"]; !ok {
		return domain.OrderCommitRequest{}, fmt.Errorf("items is required")
	}
	if parsed.TotalPrice == nil {
		return domain.OrderCommitRequest{}, fmt.Errorf("totalPrice is required")
	}

	req := domain.OrderCommitRequest{
		Items:      make([]domain.OrderItem, 0, len(parsed.Items)),
		TotalPrice: *parsed.TotalPrice,
	}
	for i, item := range parsed.Items {
		if item.Quantity == nil || item.Price == nil {
			return domain.OrderCommitRequest{}, fmt.Errorf("items[%d]: quantity and price are required", i)
		}
		if *item.Quantity != math.Trunc(*item.Quantity) {
			return domain.OrderCommitRequest{}, fmt.Errorf("items[%d]: quantity must be a whole number", i)
		}
		req.Items = append(req.Items, domain.OrderItem{
			Name:     strings.TrimSpace(item.Name),
			Quantity: int(*item.Quantity),
			Price:    *item.Price,
		})
	}

	return req, nil
}

func toolResponse(name string, result ToolResult) genai.FunctionResponse {
	response := map[string]any{"message": result.Message}
	if result.OK {
		response["status"] = "success"
		response["orderId"] = result.OrderID
	} else {
		response["status"] = "error"
	}
	return genai.FunctionResponse{Name: name, Response: response}
}
