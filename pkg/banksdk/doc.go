/*
Package banksdk is a Go client for the SparkCore banking API.

# SDKClient vs Session

SDKClient covers the public endpoints (register, login, refresh, health).
Logging in or registering yields a Session, which carries the access and
refresh tokens and refreshes the access token shortly before it expires:

	client := banksdk.NewSDKClient("https://bank.example.com")

	session, err := client.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		var apiErr *banksdk.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			time.Sleep(apiErr.RetryAfter)
		}
		return err
	}

	tx, err := session.Transfer(ctx, banksdk.TransferRequest{
		FromIBAN: "DE89100500000000000001",
		ToIBAN:   "DE02100500000000000002",
		Amount:   decimal.RequireFromString("250.00"),
	})

# Errors

Every non-2xx response is returned as *APIError, decoded from the
{timestamp, status, error, message} body the server writes.

# Money

Amounts are sent as decimals and returned as strings with two fractional
digits ("750.00"), so no value ever passes through a float.
*/
package banksdk
