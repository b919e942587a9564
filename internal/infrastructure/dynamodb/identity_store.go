package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"

	"dovita-portal/internal/domain"
)

type Client struct {
	db        *awsv2dynamodb.Client
	tableName string
}

func NewClient(ctx context.Context, region, tableName string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	client := awsv2dynamodb.NewFromConfig(cfg)
	return &Client{db: client, tableName: tableName}, nil
}

func userPK(userID string) string    { return "USER#" + userID }
func profileSK() string              { return "PROFILE" }
func roleSK(role domain.Role) string { return "ROLE#" + string(role) }
func moduleSK(module string) string  { return "MOD#" + module }

func isConditionalCheckFailure(err error) bool {
	var condErr *awsv2types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

// IdentityStore keeps user profiles, role assignments and module permission
// rows in one table keyed USER#<id> / {PROFILE, ROLE#<role>, MOD#<module>}.
// The key design enforces the one-row-per-(user, module) invariant.
type IdentityStore struct{ client *Client }

func NewIdentityStore(client *Client) *IdentityStore {
	return &IdentityStore{client: client}
}

// EnsureProfile creates the profile row if absent. Losing the conditional
// write to an earlier bootstrap or a concurrent one means the profile is
// already ensured, which is success.
func (s *IdentityStore) EnsureProfile(ctx context.Context, userID, email string) error {
	item := map[string]any{
		"PK":         userPK(userID),
		"SK":         profileSK(),
		"EntityType": "PROFILE",
		"UserID":     userID,
		"Email":      email,
		"CreatedAt":  time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	return xray.Capture(ctx, "DynamoDB.EnsureProfile", func(ctx context.Context) error {
		_, err := s.client.db.PutItem(ctx, &awsv2dynamodb.PutItemInput{
			TableName:           aws.String(s.client.tableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		})
		if isConditionalCheckFailure(err) {
			return nil
		}
		return err
	})
}

// EnsureDefaultRole seeds the default role row if the user has none yet.
func (s *IdentityStore) EnsureDefaultRole(ctx context.Context, userID string) error {
	roles, err := s.RolesByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(roles) > 0 {
		return nil
	}
	return s.putRole(ctx, userID, domain.DefaultRole, true)
}

func (s *IdentityStore) AssignRole(ctx context.Context, userID string, role domain.Role) error {
	return s.putRole(ctx, userID, role, false)
}

func (s *IdentityStore) putRole(ctx context.Context, userID string, role domain.Role, onlyIfAbsent bool) error {
	item := map[string]any{
		"PK":         userPK(userID),
		"SK":         roleSK(role),
		"EntityType": "ROLE",
		"Role":       string(role),
		"UpdatedAt":  time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	input := &awsv2dynamodb.PutItemInput{
		TableName: aws.String(s.client.tableName),
		Item:      av,
	}
	if onlyIfAbsent {
		input.ConditionExpression = aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)")
	}
	return xray.Capture(ctx, "DynamoDB.PutRole", func(ctx context.Context) error {
		_, err := s.client.db.PutItem(ctx, input)
		if onlyIfAbsent && isConditionalCheckFailure(err) {
			return nil
		}
		return err
	})
}

func (s *IdentityStore) RolesByUser(ctx context.Context, userID string) ([]domain.Role, error) {
	var out *awsv2dynamodb.QueryOutput
	err := xray.Capture(ctx, "DynamoDB.QueryRoles", func(ctx context.Context) error {
		var e error
		out, e = s.client.db.Query(ctx, &awsv2dynamodb.QueryInput{
			TableName:              aws.String(s.client.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":pk": &awsv2types.AttributeValueMemberS{Value: userPK(userID)},
				":sk": &awsv2types.AttributeValueMemberS{Value: "ROLE#"},
			},
		})
		return e
	})
	if err != nil {
		return nil, err
	}
	roles := make([]domain.Role, 0, len(out.Items))
	for _, item := range out.Items {
		raw := struct {
			Role string `dynamodbav:"Role"`
		}{}
		if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
			return nil, err
		}
		roles = append(roles, domain.Role(raw.Role))
	}
	return roles, nil
}

func (s *IdentityStore) PermissionsByUser(ctx context.Context, userID string) ([]domain.ModulePermission, error) {
	var out *awsv2dynamodb.QueryOutput
	err := xray.Capture(ctx, "DynamoDB.QueryPermissions", func(ctx context.Context) error {
		var e error
		out, e = s.client.db.Query(ctx, &awsv2dynamodb.QueryInput{
			TableName:              aws.String(s.client.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":pk": &awsv2types.AttributeValueMemberS{Value: userPK(userID)},
				":sk": &awsv2types.AttributeValueMemberS{Value: "MOD#"},
			},
		})
		return e
	})
	if err != nil {
		return nil, err
	}
	perms := make([]domain.ModulePermission, 0, len(out.Items))
	for _, item := range out.Items {
		raw := struct {
			Module    string `dynamodbav:"Module"`
			CanView   bool   `dynamodbav:"CanView"`
			CanCreate bool   `dynamodbav:"CanCreate"`
			CanEdit   bool   `dynamodbav:"CanEdit"`
			CanDelete bool   `dynamodbav:"CanDelete"`
		}{}
		if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
			return nil, err
		}
		perms = append(perms, domain.ModulePermission{
			UserID:    userID,
			Module:    raw.Module,
			CanView:   raw.CanView,
			CanCreate: raw.CanCreate,
			CanEdit:   raw.CanEdit,
			CanDelete: raw.CanDelete,
		})
	}
	return perms, nil
}

// UpsertPermission writes the capability row for (user, module). Last write
// wins; administrative grant/revoke is the only caller.
func (s *IdentityStore) UpsertPermission(ctx context.Context, perm domain.ModulePermission) error {
	if perm.UserID == "" || perm.Module == "" {
		return domain.ErrInvalidInput
	}
	item := map[string]any{
		"PK":         userPK(perm.UserID),
		"SK":         moduleSK(perm.Module),
		"EntityType": "MODULE_PERMISSION",
		"Module":     perm.Module,
		"CanView":    perm.CanView,
		"CanCreate":  perm.CanCreate,
		"CanEdit":    perm.CanEdit,
		"CanDelete":  perm.CanDelete,
		"UpdatedAt":  time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	return xray.Capture(ctx, "DynamoDB.PutModulePermission", func(ctx context.Context) error {
		_, err := s.client.db.PutItem(ctx, &awsv2dynamodb.PutItemInput{
			TableName: aws.String(s.client.tableName),
			Item:      av,
		})
		return err
	})
}
