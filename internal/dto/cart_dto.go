package dto

type CartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=1000"`
}

type CartItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
}
